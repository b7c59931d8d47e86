package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/tylolens/config"
	"github.com/jonwraymond/tylolens/ingest"
	"github.com/jonwraymond/tylolens/observe"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func newServeCommand() *cobra.Command {
	var configPath, envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trace ingestion server",
		Long: `serve accepts traces on POST /api/ingest, lists them on GET /api/traces,
streams updates on GET /api/stream and exposes Prometheus metrics on
GET /metrics.

Settings come from --config and the TYLOLENS_* environment. Variables in
--env-file are loaded first and never override the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fail(exitUsage, "Cannot read env file: "+envFile, err)
				}
			}
			f, err := loadConfig(configPath)
			if err != nil {
				return fail(exitUsage, err.Error(), err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, f, newLogger(f, cmd.ErrOrStderr()))
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file; a missing file is ignored")
	return cmd
}

// loadConfig reads path, or starts from the defaults when path is empty.
// The environment is applied either way.
func loadConfig(path string) (*config.File, error) {
	if path != "" {
		return config.Load(path)
	}
	f := config.Default()
	f.ApplyEnv(os.LookupEnv)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func newLogger(f *config.File, w io.Writer) observe.Logger {
	if !f.Observe.Logging.Enabled {
		return observe.NopLogger()
	}
	return observe.NewLoggerWithWriter(f.Observe.Logging.Level, w)
}

// newHandler mounts the ingest server next to /metrics, which serves reg.
func newHandler(f *config.File, logger observe.Logger, reg *prometheus.Registry) (http.Handler, *ingest.Server, error) {
	srv, err := ingest.NewServer(f.Ingest,
		ingest.WithLogger(logger),
		ingest.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/", srv)
	return mux, srv, nil
}

// serve runs the ingest server until ctx is done, then drains open
// streams and shuts down.
func serve(ctx context.Context, f *config.File, logger observe.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler, srv, err := newHandler(f, logger, reg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", f.Ingest.Addr)
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "listening",
			observe.F("addr", ln.Addr().String()),
			observe.F("read_only", f.Ingest.ReadOnly),
			observe.F("auth", f.Ingest.AuthEnabled()),
		)
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		srv.Drain()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info(context.Background(), "stopped")
	return nil
}
