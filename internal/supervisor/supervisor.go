// Package supervisor owns process-level lifecycle: dynamic port binding,
// non-blocking startup of background tasks, and graceful shutdown, per §4.9.
package supervisor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// BackgroundTask is a long-running initializer (IngestionEngine.Run, scorer
// training) launched without blocking the HTTP listener.
type BackgroundTask func(ctx context.Context)

// Supervisor binds the HTTP listener to the first free port in a range and
// runs background tasks alongside it, all cancelled together on shutdown.
type Supervisor struct {
	logger     *log.Logger
	grace      time.Duration
	portStart  int
	portEnd    int

	mu       sync.Mutex
	boundPort int
	startedAt time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Supervisor that will bind within [portStart, portEnd].
func New(portStart, portEnd int, grace time.Duration, logger *log.Logger) *Supervisor {
	return &Supervisor{
		logger:    logger,
		grace:     grace,
		portStart: portStart,
		portEnd:   portEnd,
	}
}

// Port returns the port the listener bound to, or 0 before Run has bound one.
func (s *Supervisor) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundPort
}

// Uptime returns the duration since the listener started accepting, or 0
// before startup completes.
func (s *Supervisor) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// bindFirstAvailable tries ports in [s.portStart, s.portEnd] and returns the
// first successfully bound listener.
func (s *Supervisor) bindFirstAvailable(host string) (net.Listener, int, error) {
	for port := s.portStart; port <= s.portEnd; port++ {
		addr := fmt.Sprintf("%s:%d", host, port)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, fmt.Errorf("no available port in range %d-%d", s.portStart, s.portEnd)
}

// Run binds the listener, starts handler serving immediately, launches the
// given background tasks concurrently (IngestionEngine, ModelManager
// training, ...), and blocks until ctx is cancelled or a termination signal
// is received by the caller's context. On return, it has already begun
// graceful shutdown: stopped accepting, cancelled background tasks, and
// waited up to the grace period for in-flight work to end.
func (s *Supervisor) Run(ctx context.Context, host string, handler http.Handler, tasks ...BackgroundTask) error {
	ln, port, err := s.bindFirstAvailable(host)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.boundPort = port
	s.startedAt = time.Now()
	s.mu.Unlock()

	bgCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	srv := &http.Server{Handler: handler}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	for _, task := range tasks {
		task := task
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			task(bgCtx)
		}()
	}

	s.logger.Info("supervisor listening", "port", port)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "err", err)
		}
	}

	return s.shutdown(srv)
}

func (s *Supervisor) shutdown(srv *http.Server) error {
	s.logger.Info("supervisor shutting down", "grace", s.grace)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.logger.Warn("background tasks did not finish within grace period")
	}

	return err
}
