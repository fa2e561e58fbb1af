package supervisor

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Prefix: "test"})
}

func TestSupervisorZeroValuesBeforeRun(t *testing.T) {
	s := New(20000, 20010, time.Second, testLogger())
	assert.Equal(t, 0, s.Port())
	assert.Equal(t, time.Duration(0), s.Uptime())
}

func TestSupervisorBindsWithinRangeAndServes(t *testing.T) {
	s := New(20100, 20110, 200*time.Millisecond, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx, "127.0.0.1", mux) }()

	require.Eventually(t, func() bool { return s.Port() != 0 }, time.Second, 5*time.Millisecond)

	port := s.Port()
	assert.GreaterOrEqual(t, port, 20100)
	assert.LessOrEqual(t, port, 20110)
	assert.Greater(t, s.Uptime(), time.Duration(0))

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestSupervisorRunsBackgroundTasksAndCancelsThem(t *testing.T) {
	s := New(20200, 20210, 200*time.Millisecond, testLogger())

	started := make(chan struct{})
	cancelled := make(chan struct{})

	task := func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx, "127.0.0.1", http.NewServeMux(), task) }()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("background task never started")
	}

	cancel()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("background task was never cancelled on shutdown")
	}

	<-runErr
}

func TestSupervisorReturnsErrorWhenPortRangeExhausted(t *testing.T) {
	blocker := New(20300, 20300, time.Second, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go blocker.Run(ctx, "127.0.0.1", http.NewServeMux())
	require.Eventually(t, func() bool { return blocker.Port() != 0 }, time.Second, 5*time.Millisecond)

	blocked := New(20300, 20300, time.Second, testLogger())
	err := blocked.Run(context.Background(), "127.0.0.1", http.NewServeMux())
	assert.Error(t, err)
}
