package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/nsfs/internal/logger"
)

const (
	// DefaultPort is used when ServerConfig.Port is unset.
	DefaultPort = 9090

	checkTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Status is the snapshot shown on the index page.
type Status struct {
	MountDir    string
	Sessions    int
	OpenFiles   int64
	Files       uint64
	Directories uint64
	UsedBytes   uint64
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Port to listen on. Zero selects DefaultPort.
	Port int

	// Healthcheck backs GET /healthz. nil always reports healthy.
	Healthcheck func(ctx context.Context) error

	// Status backs GET /. nil serves only the endpoint list.
	Status func(ctx context.Context) (*Status, error)
}

// Server exposes /metrics (Prometheus scrape), /healthz and a plain text
// status page at /.
type Server struct {
	srv  *http.Server
	port int
}

// NewServer builds a stopped server; Serve starts it.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}

	mux := http.NewServeMux()
	if reg := Registry(); reg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	} else {
		mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics collection is disabled", http.StatusServiceUnavailable)
		})
	}
	mux.HandleFunc("GET /healthz", healthz(cfg.Healthcheck))
	mux.HandleFunc("GET /{$}", index(cfg.Status))

	return &Server{
		srv: &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		port: cfg.Port,
	}
}

// Serve listens on the configured port and serves until ctx is done, then
// shuts down gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	logger.Info("Metrics server listening on %s", ln.Addr())

	served := make(chan error, 1)
	go func() {
		served <- s.srv.Serve(ln)
	}()

	select {
	case err := <-served:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	// ctx is already done; give in-flight scrapes their own deadline
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	logger.Debug("Metrics server stopped")
	return nil
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func healthz(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				http.Error(w, "unhealthy: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintln(w, "ok")
	}
}

func index(status func(context.Context) (*Status, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

		if status != nil {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			st, err := status(ctx)
			cancel()
			if err != nil {
				_, _ = fmt.Fprintf(tw, "status unavailable: %v\n\n", err)
			} else {
				_, _ = fmt.Fprintf(tw, "mount\t%s\n", st.MountDir)
				_, _ = fmt.Fprintf(tw, "sessions\t%d\n", st.Sessions)
				_, _ = fmt.Fprintf(tw, "open files\t%d\n", st.OpenFiles)
				_, _ = fmt.Fprintf(tw, "files\t%s\n", humanize.Comma(int64(st.Files)))
				_, _ = fmt.Fprintf(tw, "directories\t%s\n", humanize.Comma(int64(st.Directories)))
				_, _ = fmt.Fprintf(tw, "used\t%s\n\n", humanize.IBytes(st.UsedBytes))
			}
		}

		_, _ = fmt.Fprintln(tw, "/metrics\tPrometheus scrape endpoint")
		_, _ = fmt.Fprintln(tw, "/healthz\tmetadata store healthcheck")
		_ = tw.Flush()
	}
}
