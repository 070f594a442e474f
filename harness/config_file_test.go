package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "echotest.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigFile(t *testing.T) {
	require := require.New(t)

	t.Run("All Keys", func(t *testing.T) {
		path := writeConfigFile(t, `
host = "127.0.0.1"
port = 7000
timeout = "250ms"
max_test_index = 50
max_fail_count = 5
step_delay = "1ms"
failure_mode = "resend-last"
`)
		cfg, err := LoadConfigFile(path)
		require.NoError(err)
		require.Equal("127.0.0.1:7000", cfg.Address())
		require.Equal(250*time.Millisecond, cfg.Timeout())
		require.Equal(50, cfg.MaxTestIndex())
		require.Equal(5, cfg.MaxFailCount())
		require.Equal(time.Millisecond, cfg.StepDelay())
		require.Equal(FailureModeResendLast, cfg.FailureMode())
	})

	t.Run("Missing Keys Keep Defaults", func(t *testing.T) {
		path := writeConfigFile(t, `port = 7001`)

		cfg, err := LoadConfigFile(path)
		require.NoError(err)
		require.Equal(DefaultHost, cfg.Host())
		require.Equal(7001, cfg.Port())
		require.Equal(DefaultTimeout, cfg.Timeout())
		require.Equal(DefaultMaxTestIndex, cfg.MaxTestIndex())
		require.Equal(DefaultMaxFailCount, cfg.MaxFailCount())
		require.Equal(DefaultStepDelay, cfg.StepDelay())
	})

	t.Run("Options Override File", func(t *testing.T) {
		path := writeConfigFile(t, `step_delay = "5ms"`)

		cfg, err := LoadConfigFile(path, WithStepDelay(0))
		require.NoError(err)
		require.Zero(cfg.StepDelay())
	})

	t.Run("Unknown Key", func(t *testing.T) {
		path := writeConfigFile(t, "port = 7002\nretries = 3\n")

		_, err := LoadConfigFile(path)
		require.ErrorContains(err, "unknown keys: retries")
	})

	t.Run("Bad Duration", func(t *testing.T) {
		path := writeConfigFile(t, `timeout = "soon"`)

		_, err := LoadConfigFile(path)
		require.ErrorContains(err, "parse timeout")
	})

	t.Run("Bad Failure Mode", func(t *testing.T) {
		path := writeConfigFile(t, `failure_mode = "reconnect"`)

		_, err := LoadConfigFile(path)
		require.ErrorContains(err, "parse failure_mode")
	})

	t.Run("Out Of Range Value", func(t *testing.T) {
		path := writeConfigFile(t, `max_fail_count = 0`)

		_, err := LoadConfigFile(path)
		require.ErrorContains(err, "max fail count out of range")
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.toml"))
		require.ErrorContains(err, "load harness config")
	})
}
