package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-echotest/internal/echoserver"
)

func startServer(t *testing.T, opts ...echoserver.Option) *echoserver.Server {
	t.Helper()

	s, err := echoserver.Start(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestRun_Passed(t *testing.T) {
	require := require.New(t)

	srv := startServer(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-port", strconv.Itoa(srv.Port()),
		"-max-index", "20",
		"-step-delay", "0s",
		"-log-level", "error",
	}, &stdout, &stderr)

	require.Equal(exitPassed, code, stderr.String())
	require.Contains(stdout.String(), "Test passed")
	require.Contains(stdout.String(), "test index:   21")
	require.Contains(stdout.String(), "latency (us)")
}

func TestRun_Failed(t *testing.T) {
	require := require.New(t)

	srv := startServer(t, echoserver.WithCloseOnAccept())

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-port", strconv.Itoa(srv.Port()),
		"-max-fail", "3",
		"-timeout", "100ms",
		"-step-delay", "0s",
		"-log-level", "error",
	}, &stdout, &stderr)

	require.Equal(exitFailed, code)
	require.Contains(stdout.String(), "Test failed")
	require.Contains(stdout.String(), "failed to start communication test")
	require.NotContains(stdout.String(), "latency (us)")
}

func TestRun_ConfigFile(t *testing.T) {
	require := require.New(t)

	srv := startServer(t)

	path := filepath.Join(t.TempDir(), "echotest.toml")
	content := "port = 1\nmax_test_index = 5\nstep_delay = \"0s\"\n"
	require.NoError(os.WriteFile(path, []byte(content), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-config", path,
		"-port", strconv.Itoa(srv.Port()),
		"-log-level", "error",
	}, &stdout, &stderr)

	require.Equal(exitPassed, code, stderr.String())
	require.Contains(stdout.String(), "test index:   6")
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "Unknown Flag", args: []string{"-nope"}, want: "flag provided but not defined"},
		{name: "Log Level", args: []string{"-log-level", "loud"}, want: `invalid log level "loud"`},
		{name: "Failure Mode", args: []string{"-failure-mode", "retry"}, want: `unknown failure mode "retry"`},
		{name: "Port", args: []string{"-port", "0"}, want: "port is out of range"},
		{name: "Missing File", args: []string{"-config", "/nonexistent/echotest.toml"}, want: "load harness config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr)
			require.Equal(t, exitUsage, code)
			require.Contains(t, stderr.String(), tt.want)
			require.Empty(t, stdout.String())
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-log-level", "error"}, &stdout, &stderr)

	require.Equal(t, exitFailed, code)
	require.Contains(t, stdout.String(), "context canceled")
}

func TestServeMetrics(t *testing.T) {
	require := require.New(t)

	srv := startServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	addr := ln.Addr().String()
	require.NoError(ln.Close())

	var stdout, stderr bytes.Buffer
	done := make(chan int, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		done <- run(ctx, []string{
			"-port", strconv.Itoa(srv.Port()),
			"-metrics-addr", addr,
			"-step-delay", "20ms",
			"-log-level", "error",
		}, &stdout, &stderr)
	}()

	var body string
	require.Eventually(func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		body = string(b)

		return true
	}, 2*time.Second, 10*time.Millisecond)

	require.Contains(body, "echotest_exchanges_total")
	require.Contains(body, "echotest_fail_budget 100")

	cancel()
	select {
	case code := <-done:
		require.Equal(exitFailed, code)
	case <-time.After(5 * time.Second):
		require.Fail("run did not return after cancel")
	}
}
