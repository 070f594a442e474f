package harness

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Timeout      string `toml:"timeout"`
	MaxTestIndex int    `toml:"max_test_index"`
	MaxFailCount int    `toml:"max_fail_count"`
	StepDelay    string `toml:"step_delay"`
	FailureMode  string `toml:"failure_mode"`
}

// LoadConfigFile reads a TOML configuration file and builds a Config from it.
//
// Keys missing from the file keep their defaults. Durations use time.ParseDuration
// syntax, e.g. timeout = "500ms". Options in opts are applied after the file values
// and therefore override them. Unknown keys are rejected.
//
// Example file:
//
//	host = "127.0.0.1"
//	port = 6666
//	timeout = "500ms"
//	max_test_index = 400
//	max_fail_count = 100
//	step_delay = "2ms"
//	failure_mode = "legacy"
func LoadConfigFile(path string, opts ...Option) (*Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load harness config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)

		return nil, fmt.Errorf("load harness config: unknown keys: %s", strings.Join(keys, ", "))
	}

	host, port := DefaultHost, DefaultPort
	if meta.IsDefined("host") {
		host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		port = raw.Port
	}

	fileOpts := make([]Option, 0, len(opts)+5)

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return nil, fmt.Errorf("parse timeout: %w", err)
		}
		fileOpts = append(fileOpts, WithTimeout(d))
	}

	if meta.IsDefined("max_test_index") {
		fileOpts = append(fileOpts, WithMaxTestIndex(raw.MaxTestIndex))
	}

	if meta.IsDefined("max_fail_count") {
		fileOpts = append(fileOpts, WithMaxFailCount(raw.MaxFailCount))
	}

	if meta.IsDefined("step_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.StepDelay))
		if err != nil {
			return nil, fmt.Errorf("parse step_delay: %w", err)
		}
		fileOpts = append(fileOpts, WithStepDelay(d))
	}

	if meta.IsDefined("failure_mode") {
		mode, err := ParseFailureMode(raw.FailureMode)
		if err != nil {
			return nil, fmt.Errorf("parse failure_mode: %w", err)
		}
		fileOpts = append(fileOpts, WithFailureMode(mode))
	}

	cfg, err := NewConfig(host, port, append(fileOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("load harness config: %w", err)
	}

	return cfg, nil
}
