package harness

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-echotest/logger"
)

// Defaults of the harness, matching the server under test.
const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 6666
	DefaultTimeout      = 500 * time.Millisecond
	DefaultMaxTestIndex = 400
	DefaultMaxFailCount = 100
	DefaultStepDelay    = 2 * time.Millisecond
)

// ResponseLengthOffset is added to the test index to get the expected response length,
// so step 1 expects 8 bytes and step 400 expects 407 bytes.
const ResponseLengthOffset = 7

var seedPayload = [...]byte{0x00, 0x00, 0x01, 0x00, 0xD2, 0x02, 0xEF, 0x8D}

// SeedPayload returns a copy of the fixed 8-byte request sent on the first exchange.
func SeedPayload() []byte {
	seed := make([]byte, len(seedPayload))
	copy(seed, seedPayload[:])

	return seed
}

// ExpectedLength returns the response length expected for the given test index.
func ExpectedLength(testIndex int) int {
	return ResponseLengthOffset + testIndex
}

// FailureMode selects what the driver does after a failed exchange in the running state.
type FailureMode uint8

const (
	// FailureModeLegacy replaces the held response with the failed exchange's result,
	// which is absent. Later steps have nothing to send and each one counts as a
	// failure until the fail budget is spent.
	FailureModeLegacy FailureMode = iota
	// FailureModeResendLast keeps the last good response and sends it again on the next step.
	FailureModeResendLast
	// FailureModeAbort ends the run as failed on the first failed exchange.
	FailureModeAbort
)

// String returns string representation of the failure mode.
func (m FailureMode) String() string {
	switch m {
	case FailureModeLegacy:
		return "legacy"
	case FailureModeResendLast:
		return "resend-last"
	case FailureModeAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// ParseFailureMode converts a failure mode name, as returned by FailureMode.String, into a FailureMode.
func ParseFailureMode(name string) (FailureMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "legacy":
		return FailureModeLegacy, nil
	case "resend-last", "resend_last":
		return FailureModeResendLast, nil
	case "abort":
		return FailureModeAbort, nil
	default:
		return FailureModeLegacy, fmt.Errorf("unknown failure mode %q", name)
	}
}

// Config is the immutable configuration of a harness run.
type Config struct {
	// host of the server under test.
	host string
	// port of the server under test.
	port int

	// timeout bounds connecting and every read or write on the session.
	// Defaults to 500 milliseconds.
	timeout time.Duration

	// maxTestIndex is the last test index to run; the run passes once it is exceeded.
	// Defaults to 400.
	maxTestIndex int

	// maxFailCount is the initial fail budget.
	// Defaults to 100.
	maxFailCount int

	// stepDelay paces connect retries and exchanges. It is not a retry backoff.
	// Defaults to 2 milliseconds.
	stepDelay time.Duration

	// failureMode selects the behavior after a failed exchange in the running state.
	// Defaults to FailureModeLegacy.
	failureMode FailureMode

	logger  logger.Logger
	metrics *RunMetrics
}

// NewConfig creates a harness configuration for the server at host and port, applying opts
// over the defaults.
//
// It returns the configuration and the first error reported by an option.
func NewConfig(host string, port int, opts ...Option) (*Config, error) {
	cfg := &Config{
		timeout:      DefaultTimeout,
		maxTestIndex: DefaultMaxTestIndex,
		maxFailCount: DefaultMaxFailCount,
		stepDelay:    DefaultStepDelay,
		failureMode:  FailureModeLegacy,
		logger:       logger.GetLogger(),
	}

	if err := WithHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := WithPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.metrics == nil {
		cfg.metrics = &RunMetrics{}
	}

	return cfg, nil
}

// DefaultConfig creates a configuration for DefaultHost and DefaultPort.
func DefaultConfig(opts ...Option) (*Config, error) {
	return NewConfig(DefaultHost, DefaultPort, opts...)
}

func (cfg *Config) Host() string { return cfg.host }

func (cfg *Config) Port() int { return cfg.port }

// Address returns the host:port of the server under test.
func (cfg *Config) Address() string {
	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

func (cfg *Config) Timeout() time.Duration { return cfg.timeout }

func (cfg *Config) MaxTestIndex() int { return cfg.maxTestIndex }

func (cfg *Config) MaxFailCount() int { return cfg.maxFailCount }

func (cfg *Config) StepDelay() time.Duration { return cfg.stepDelay }

func (cfg *Config) FailureMode() FailureMode { return cfg.failureMode }

func (cfg *Config) Logger() logger.Logger { return cfg.logger }

// Metrics returns the counters updated by drivers created from this configuration.
func (cfg *Config) Metrics() *RunMetrics { return cfg.metrics }

// Option represents a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error {
	if cfg == nil {
		return ErrConfigNil
	}

	return o.applyFunc(cfg)
}

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

// WithHost replaces the host given to NewConfig.
// The host must be an IP address or a resolvable host name.
func WithHost(host string) Option {
	return newOptFunc("WithHost", func(cfg *Config) error {
		host = strings.TrimSpace(host)
		if host == "" {
			return errors.New("host is empty")
		}

		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		if _, err := net.LookupHost(host); err != nil {
			return fmt.Errorf("invalid host %q", host)
		}
		cfg.host = host

		return nil
	})
}

// WithPort replaces the TCP port given to NewConfig.
func WithPort(port int) Option {
	return newOptFunc("WithPort", func(cfg *Config) error {
		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithTimeout sets the timeout for connecting and for every read or write on the session.
// An error is returned if the timeout is outside the valid range (1ms-60s).
//
// The default value is 500 milliseconds.
func WithTimeout(val time.Duration) Option {
	return newOptFunc("WithTimeout", func(cfg *Config) error {
		if val < time.Millisecond || val > 60*time.Second {
			return errors.New("timeout out of range [1ms, 60s]")
		}
		cfg.timeout = val

		return nil
	})
}

// WithMaxTestIndex sets the last test index of the run.
// An error is returned if the value is outside the valid range (1-65535).
//
// The default value is 400.
func WithMaxTestIndex(val int) Option {
	return newOptFunc("WithMaxTestIndex", func(cfg *Config) error {
		if val < 1 || val > 65535 {
			return errors.New("max test index out of range [1, 65535]")
		}
		cfg.maxTestIndex = val

		return nil
	})
}

// WithMaxFailCount sets the initial fail budget.
// An error is returned if the value is outside the valid range (1-100000).
//
// The default value is 100.
func WithMaxFailCount(val int) Option {
	return newOptFunc("WithMaxFailCount", func(cfg *Config) error {
		if val < 1 || val > 100000 {
			return errors.New("max fail count out of range [1, 100000]")
		}
		cfg.maxFailCount = val

		return nil
	})
}

// WithStepDelay sets the pause between connect retries and between exchanges.
// Zero disables pacing. An error is returned if the delay is outside the valid range (0-10s).
//
// The default value is 2 milliseconds.
func WithStepDelay(val time.Duration) Option {
	return newOptFunc("WithStepDelay", func(cfg *Config) error {
		if val < 0 || val > 10*time.Second {
			return errors.New("step delay out of range [0, 10s]")
		}
		cfg.stepDelay = val

		return nil
	})
}

// WithFailureMode sets the behavior after a failed exchange in the running state.
//
// The default value is FailureModeLegacy.
func WithFailureMode(mode FailureMode) Option {
	return newOptFunc("WithFailureMode", func(cfg *Config) error {
		if mode > FailureModeAbort {
			return fmt.Errorf("invalid failure mode %d", mode)
		}
		cfg.failureMode = mode

		return nil
	})
}

// WithLogger sets the logger used by the driver, the connector and the exchange engine.
//
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithMetrics sets the counters updated during the run, so they can be shared with
// a metrics registry before the run starts.
//
// By default each configuration gets its own RunMetrics.
func WithMetrics(m *RunMetrics) Option {
	return newOptFunc("WithMetrics", func(cfg *Config) error {
		if m == nil {
			return errors.New("metrics is nil")
		}
		cfg.metrics = m

		return nil
	})
}
