// The echotest command runs the echo-and-grow conformance test against a TCP server.
//
// Defaults can be changed through a TOML file given with -config; flags set on the
// command line override the file. The exit code is 0 when the test passed and 1 otherwise.
//
//	echotest -host 127.0.0.1 -port 6666 -log-level info
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/go-echotest/harness"
	"github.com/arloliu/go-echotest/logger"
)

const (
	exitPassed = 0
	exitFailed = 1
	exitUsage  = 2
)

type cliFlags struct {
	configPath  string
	host        string
	port        int
	timeout     time.Duration
	maxIndex    int
	maxFail     int
	stepDelay   time.Duration
	failureMode string
	logLevel    string
	logJSON     bool
	metricsAddr string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("echotest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f cliFlags
	fs.StringVar(&f.configPath, "config", "", "path of a TOML configuration file")
	fs.StringVar(&f.host, "host", harness.DefaultHost, "host of the server under test")
	fs.IntVar(&f.port, "port", harness.DefaultPort, "port of the server under test {1-65535}")
	fs.DurationVar(&f.timeout, "timeout", harness.DefaultTimeout, "connect and per-operation I/O timeout")
	fs.IntVar(&f.maxIndex, "max-index", harness.DefaultMaxTestIndex, "last test index of the run")
	fs.IntVar(&f.maxFail, "max-fail", harness.DefaultMaxFailCount, "fail budget of the run")
	fs.DurationVar(&f.stepDelay, "step-delay", harness.DefaultStepDelay, "pause between steps")
	fs.StringVar(&f.failureMode, "failure-mode", "legacy", "behavior after a failed step {legacy|resend-last|abort}")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level {debug|info|warn|error}")
	fs.BoolVar(&f.logJSON, "log-json", false, "write JSON logs instead of console output")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address during the run")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	level, ok := logger.ParseLevel(f.logLevel)
	if !ok {
		fmt.Fprintf(stderr, "invalid log level %q\n", f.logLevel)
		return exitUsage
	}
	log := logger.NewSlog(level, logger.WithOutput(stderr), logger.WithConsole(!f.logJSON))
	logger.SetDefault(log)

	cfg, err := buildConfig(fs, &f, log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if f.metricsAddr != "" {
		shutdown, err := serveMetrics(f.metricsAddr, cfg.Metrics(), log)
		if err != nil {
			log.Error("failed to serve metrics", "addr", f.metricsAddr, "error", err)
			return exitFailed
		}
		defer shutdown()
	}

	driver, err := harness.NewDriver(cfg)
	if err != nil {
		log.Error("failed to create driver", "error", err)
		return exitFailed
	}

	report := driver.Run(ctx)
	printReport(stdout, report)

	if report.Passed() {
		return exitPassed
	}

	return exitFailed
}

// buildConfig applies the file values first and the explicitly set flags over them.
func buildConfig(fs *flag.FlagSet, f *cliFlags, log logger.Logger) (*harness.Config, error) {
	opts := []harness.Option{harness.WithLogger(log)}

	var errs []error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "host":
			opts = append(opts, harness.WithHost(f.host))
		case "port":
			opts = append(opts, harness.WithPort(f.port))
		case "timeout":
			opts = append(opts, harness.WithTimeout(f.timeout))
		case "max-index":
			opts = append(opts, harness.WithMaxTestIndex(f.maxIndex))
		case "max-fail":
			opts = append(opts, harness.WithMaxFailCount(f.maxFail))
		case "step-delay":
			opts = append(opts, harness.WithStepDelay(f.stepDelay))
		case "failure-mode":
			mode, err := harness.ParseFailureMode(f.failureMode)
			if err != nil {
				errs = append(errs, err)
				return
			}
			opts = append(opts, harness.WithFailureMode(mode))
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if f.configPath != "" {
		return harness.LoadConfigFile(f.configPath, opts...)
	}

	return harness.DefaultConfig(opts...)
}

func serveMetrics(addr string, m *harness.RunMetrics, log logger.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := m.Register(reg, "echotest"); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", "error", err)
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printReport(w io.Writer, r *harness.Report) {
	fmt.Fprintln(w, r.String())
	fmt.Fprintf(w, "  test index:   %d\n", r.TestIndex)
	fmt.Fprintf(w, "  fail budget:  %d\n", r.FailBudget)
	fmt.Fprintf(w, "  connects:     %d (%d failed)\n", r.ConnectAttempts, r.ConnectFailures)
	fmt.Fprintf(w, "  exchanges:    %d (%d failed)\n", r.Exchanges, r.ExchangeFailures)
	if r.Samples() > 0 {
		fmt.Fprintf(w, "  latency (us): total=%d avg=%d min=%d max=%d\n",
			r.TotalLatency.Microseconds(),
			r.AverageLatency().Microseconds(),
			r.MinLatency.Microseconds(),
			r.MaxLatency.Microseconds(),
		)
	}
	if r.Err != nil {
		fmt.Fprintf(w, "  error:        %v\n", r.Err)
	}
}
