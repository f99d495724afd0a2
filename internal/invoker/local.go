package invoker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Local runs invocation targets as child processes. It exists for one-shot
// dispatch runs and tests; the daemon normally talks to a remote executor.
//
// Contract with the child process: inputs arrive as DOCSFLOW_INPUT_<NAME>
// environment variables, permissions as DOCSFLOW_PERM_<SCOPE>, and outputs
// are read back from the key=value file named by DOCSFLOW_OUTPUT_FILE.
// Secrets are passed through from the parent environment by name.
type Local struct {
	WorkDir string
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewLocal creates a local process invoker rooted at workDir.
func NewLocal(workDir string) *Local {
	return &Local{WorkDir: workDir, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Invoke executes the target and waits for it to exit. A non-zero exit is a
// reported failure, not an invocation error; context cancellation and
// deadline expiry surface as errors for the engine to classify.
func (l *Local) Invoke(ctx context.Context, req Request) (Result, error) {
	outputDir, err := os.MkdirTemp("", "docsflow-outputs-")
	if err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)
	outputFile := filepath.Join(outputDir, "outputs")

	cmd := exec.CommandContext(ctx, req.Target, req.Params...)
	cmd.Dir = l.WorkDir
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.Env = l.buildEnv(req, outputFile)

	runErr := cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return Result{
				Status:  StatusFailed,
				Message: fmt.Sprintf("%s exited with status %d", req.Target, exitErr.ExitCode()),
			}, nil
		}
		// Target missing, not executable, etc.
		return Result{}, fmt.Errorf("start %s: %w", req.Target, runErr)
	}

	outputs, err := readOutputFile(outputFile)
	if err != nil {
		return Result{}, fmt.Errorf("read outputs: %w", err)
	}
	return Result{Status: StatusSucceeded, Outputs: outputs}, nil
}

// buildEnv composes the child environment. Secret values travel only as
// pass-through of already-present environment variables; the request itself
// carries names, never values.
func (l *Local) buildEnv(req Request, outputFile string) []string {
	env := os.Environ()
	env = append(env,
		"DOCSFLOW_RUN_ID="+req.RunID,
		"DOCSFLOW_JOB="+req.Job,
		"DOCSFLOW_OUTPUT_FILE="+outputFile,
	)
	for name, value := range req.Inputs {
		env = append(env, "DOCSFLOW_INPUT_"+envKey(name)+"="+value)
	}
	for scope, level := range req.Permissions {
		env = append(env, "DOCSFLOW_PERM_"+envKey(scope)+"="+level)
	}
	return env
}

// envKey normalizes an input/permission name into an env var suffix.
func envKey(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

// readOutputFile parses key=value lines from the output file. A missing file
// simply means the job declared no outputs.
func readOutputFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	outputs := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		outputs[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, nil
	}
	return outputs, nil
}
