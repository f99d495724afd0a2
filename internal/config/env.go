package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFile loads environment variables from the first .env/.env.local file
// found. godotenv never overwrites variables already present in the process
// environment, so real env always wins over file contents.
func loadEnvFile() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			fmt.Fprintf(os.Stderr, "Note: failed to load %s: %v\n", envPath, err)
			continue
		}
		return
	}
}
