package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsflow/internal/config"
)

func TestPolicyDelay(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		retry  int
		want   time.Duration
	}{
		{"zero retry no delay", DefaultPolicy(), 0, 0},
		{"fixed stays flat", Policy{Mode: config.RetryBackoffFixed, Initial: 2 * time.Second, Max: time.Minute, MaxRetries: 3}, 3, 2 * time.Second},
		{"linear grows", Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: time.Minute, MaxRetries: 5}, 3, 3 * time.Second},
		{"linear capped", Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 2 * time.Second, MaxRetries: 5}, 10, 2 * time.Second},
		{"exponential grows", Policy{Mode: config.RetryBackoffExponential, Initial: time.Second, Max: time.Minute, MaxRetries: 5}, 4, 8 * time.Second},
		{"exponential capped", Policy{Mode: config.RetryBackoffExponential, Initial: time.Second, Max: 5 * time.Second, MaxRetries: 5}, 10, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.policy.Delay(tt.retry))
		})
	}
}

func TestNewPolicyFallbacks(t *testing.T) {
	p := NewPolicy("bogus", 0, 0, -1)
	def := DefaultPolicy()
	require.Equal(t, def.Mode, p.Mode)
	require.Equal(t, def.Initial, p.Initial)
	require.Equal(t, def.Max, p.Max)
	require.Equal(t, def.MaxRetries, p.MaxRetries)
}

func TestFromConfigNormalizesBackoff(t *testing.T) {
	p := FromConfig(config.RetryConfig{
		Backoff:      "Exponential",
		InitialDelay: "1s",
		MaxDelay:     "1m",
		MaxRetries:   3,
	})
	require.Equal(t, config.RetryBackoffExponential, p.Mode)
	require.Equal(t, 4*time.Second, p.Delay(3))
}

func TestNewPolicyClampsInitial(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Minute, time.Second, 1)
	require.Equal(t, time.Second, p.Initial)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())
	require.Error(t, Policy{}.Validate())
	require.Error(t, Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}.Validate())
}
