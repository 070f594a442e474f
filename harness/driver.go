package harness

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-echotest/exchange"
	"github.com/arloliu/go-echotest/internal/pool"
	"github.com/arloliu/go-echotest/logger"
	"github.com/arloliu/go-echotest/session"
)

type connector interface {
	Connect(ctx context.Context, address string) (*session.Session, error)
}

// Driver runs the echo-and-grow test against one server.
//
// A Driver runs once; create a new one for every run.
type Driver struct {
	cfg       *Config
	logger    logger.Logger
	connector connector
	engine    *exchange.Engine
	metrics   *RunMetrics

	state   atomicRunState
	started atomic.Bool

	sleep func(ctx context.Context, d time.Duration) error
}

// runState is the mutable state of a single run, owned by Run.
type runState struct {
	testIndex  int
	failBudget int
	response   []byte
	sess       *session.Session
	report     *Report
}

// NewDriver creates a Driver for cfg.
func NewDriver(cfg *Config) (*Driver, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	l := cfg.Logger().With("address", cfg.Address())

	return &Driver{
		cfg:       cfg,
		logger:    l,
		connector: session.NewConnector(cfg.Timeout(), l),
		engine:    exchange.NewEngine(l),
		metrics:   cfg.Metrics(),
		sleep:     pool.Sleep,
	}, nil
}

// State returns the current state of the driver.
func (d *Driver) State() RunState { return d.state.Get() }

// Metrics returns the counters updated by the driver.
func (d *Driver) Metrics() *RunMetrics { return d.metrics }

// Run performs the whole test and returns its report.
//
// Run blocks until the run reaches PassedState or FailedState. Cancelling ctx ends the
// run as failed at the next connect, step or pacing delay; a blocked read or write is
// only bounded by the configured timeout. The session is closed before Run returns.
func (d *Driver) Run(ctx context.Context) *Report {
	if !d.started.CompareAndSwap(false, true) {
		return &Report{Verdict: VerdictFailed, Phase: d.State(), Err: ErrAlreadyRun}
	}

	rs := &runState{
		testIndex:  1,
		failBudget: d.cfg.MaxFailCount(),
		report:     &Report{},
	}
	defer rs.closeSession()

	d.metrics.setTestIndex(rs.testIndex)
	d.metrics.setFailBudget(rs.failBudget)

	d.logger.Debug("bootstrapping", "fail_budget", rs.failBudget, "max_test_index", d.cfg.MaxTestIndex())
	if err := d.bootstrap(ctx, rs); err != nil {
		return d.finish(rs, BootstrappingState, err)
	}

	if !d.state.ToRunning() {
		d.logger.Warn("unexpected state transition to running", "state", d.State())
	}

	return d.finish(rs, RunningState, d.loop(ctx, rs))
}

// bootstrap connects and performs the seed exchange until it succeeds or the fail budget is spent.
// On success rs holds the open session and the seed response, and the test index is 2.
func (d *Driver) bootstrap(ctx context.Context, rs *runState) error {
	for rs.failBudget > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		rs.report.ConnectAttempts++
		d.metrics.incConnectAttemptCount()

		sess, err := d.connector.Connect(ctx, d.cfg.Address())
		if err != nil {
			rs.report.ConnectFailures++
			d.metrics.incConnectErrCount()
			d.consumeBudget(rs)

			if err := d.pace(ctx, rs); err != nil {
				return err
			}

			continue
		}

		out := d.exchange(rs, sess, SeedPayload(), ExpectedLength(rs.testIndex))
		if out.OK() {
			d.logger.Info("test started successfully", "elapsed_us", out.ElapsedMicros())
			rs.sess = sess
			rs.response = out.Response
			d.advance(rs)

			return nil
		}

		_ = sess.Close()
		d.consumeBudget(rs)
		d.logger.Warn("seed exchange failed", "fail_budget", rs.failBudget, "error", out.Err)

		if err := d.pace(ctx, rs); err != nil {
			return err
		}
	}

	return ErrBootstrapExhausted
}

// loop performs the escalating-length exchanges on the bootstrapped session.
func (d *Driver) loop(ctx context.Context, rs *runState) error {
	maxIndex := d.cfg.MaxTestIndex()

	for rs.testIndex <= maxIndex && rs.failBudget > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		step := rs.testIndex
		out := d.exchange(rs, rs.sess, rs.response, ExpectedLength(step))

		if out.OK() {
			rs.report.addLatency(out.Elapsed)
			d.metrics.addLatencyMicros(out.ElapsedMicros())
			d.logger.Info("success",
				"step", step,
				"sent", out.Sent,
				"received", len(out.Response),
				"elapsed_us", out.ElapsedMicros(),
			)
			rs.response = out.Response
			d.advance(rs)
		} else {
			d.consumeBudget(rs)
			d.logger.Warn("fail",
				"step", step,
				"status", out.Status,
				"fail_budget", rs.failBudget,
				"error", out.Err,
			)

			switch d.cfg.FailureMode() {
			case FailureModeLegacy:
				// the held response follows the exchange result, which is absent on failure
				rs.response = out.Response
			case FailureModeResendLast:
				// keep the last good response
			case FailureModeAbort:
				if out.Err != nil {
					return fmt.Errorf("%w at step %d: %w", ErrAborted, step, out.Err)
				}
				return fmt.Errorf("%w at step %d: %s", ErrAborted, step, out.Status)
			}
		}

		if err := d.pace(ctx, rs); err != nil {
			return err
		}
	}

	if rs.failBudget == 0 {
		return ErrBudgetExhausted
	}

	return nil
}

// finish evaluates the verdict and builds the report.
func (d *Driver) finish(rs *runState, phase RunState, err error) *Report {
	r := rs.report
	r.Phase = phase
	r.TestIndex = rs.testIndex
	r.FailBudget = rs.failBudget
	r.Err = err

	if err == nil && rs.testIndex > d.cfg.MaxTestIndex() && rs.failBudget > 0 {
		r.Verdict = VerdictPassed
		d.state.ToPassed()
		d.logger.Info("Test passed",
			"steps", rs.testIndex-1,
			"fail_budget", rs.failBudget,
			"total_us", r.TotalLatency.Microseconds(),
			"avg_us", r.AverageLatency().Microseconds(),
			"min_us", r.MinLatency.Microseconds(),
			"max_us", r.MaxLatency.Microseconds(),
		)

		return r
	}

	r.Verdict = VerdictFailed
	d.state.ToFailed()
	d.logger.Error("Test failed",
		"phase", phase,
		"test_index", rs.testIndex,
		"fail_budget", rs.failBudget,
		"error", err,
	)

	return r
}

func (d *Driver) exchange(rs *runState, sess *session.Session, payload []byte, expected int) exchange.Outcome {
	out := d.engine.Exchange(sess, payload, expected)

	rs.report.Exchanges++
	d.metrics.incExchangeCount()
	d.metrics.addBytesSent(out.Sent)

	if out.OK() {
		rs.report.Successes++
		d.metrics.addBytesRecv(len(out.Response))
	} else {
		rs.report.ExchangeFailures++
		d.metrics.incExchangeErrCount()
	}

	return out
}

func (d *Driver) advance(rs *runState) {
	rs.testIndex++
	d.metrics.setTestIndex(rs.testIndex)
}

func (d *Driver) consumeBudget(rs *runState) {
	if rs.failBudget > 0 {
		rs.failBudget--
	}
	d.metrics.setFailBudget(rs.failBudget)
}

// pace waits for the step delay unless the run is about to end.
func (d *Driver) pace(ctx context.Context, rs *runState) error {
	if rs.failBudget == 0 || rs.testIndex > d.cfg.MaxTestIndex() {
		return nil
	}

	return d.sleep(ctx, d.cfg.StepDelay())
}

func (rs *runState) closeSession() {
	if rs.sess != nil {
		_ = rs.sess.Close()
	}
}
