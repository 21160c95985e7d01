// Command lanegraph evaluates a road-network script, validates and
// tessellates the result, and optionally picks along a ray and serves
// metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chazu/lanegraph/pkg/config"
	"github.com/chazu/lanegraph/pkg/kernel"
	"github.com/chazu/lanegraph/pkg/logging"
	"github.com/chazu/lanegraph/pkg/metrics"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/rs/zerolog"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("lanegraph", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	scriptPath := fs.String("script", "", "network script, or - for stdin")
	pickRay := fs.String("pick", "", `ray to pick along, as "ox,oy,oz,dx,dy,dz"`)
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics here until interrupted")
	dump := fs.Bool("json", false, "write the evaluation result as JSON to stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *scriptPath == "" {
		fmt.Fprintln(fs.Output(), "lanegraph: -script is required")
		fs.Usage()
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	kernel.SetLogger(&logger)

	var ray *kernel.Ray
	if *pickRay != "" {
		r, err := parseRay(*pickRay)
		if err != nil {
			logger.Error().Err(err).Msg("bad -pick")
			return 2
		}
		ray = &r
	}

	source, err := readScript(*scriptPath, stdin)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read script")
		return 1
	}

	m := metrics.New()
	app := NewApp(cfg, logger, m)
	result := app.Evaluate(source)

	for _, w := range result.Warnings {
		logger.Warn().Str("node", w.NodeID).Msg(w.Message)
	}
	for _, e := range result.Errors {
		logger.Error().Int("line", e.Line).Msg(e.Message)
	}
	if len(result.Errors) > 0 {
		return 1
	}
	logger.Info().
		Int("parts", result.Stats.Parts).
		Int("vertices", result.Stats.Vertices).
		Int("triangles", result.Stats.Triangles).
		Floats64("min", result.Stats.Min[:]).
		Floats64("max", result.Stats.Max[:]).
		Msg("network tessellated")

	if ray != nil {
		if hit, ok := app.Pick(*ray); ok {
			logger.Info().
				Str("kind", hit.Kind).
				Str("entity", hit.Entity).
				Str("lane_end", hit.LaneEnd).
				Float64("distance", hit.Distance).
				Msg("picked")
		} else {
			logger.Info().Msg("pick missed")
		}
	}

	if *dump {
		enc := json.NewEncoder(stdout)
		if err := enc.Encode(result); err != nil {
			logger.Error().Err(err).Msg("failed to write result")
			return 1
		}
	}

	if cfg.Metrics.Addr != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := serveMetrics(ctx, cfg.Metrics.Addr, m, logger); err != nil {
			logger.Error().Err(err).Msg("metrics server error")
			return 1
		}
	}
	return 0
}

func readScript(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

// parseRay reads "ox,oy,oz,dx,dy,dz".
func parseRay(s string) (kernel.Ray, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 6 {
		return kernel.Ray{}, fmt.Errorf("ray %q: want 6 comma-separated numbers, got %d", s, len(fields))
	}
	var f [6]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return kernel.Ray{}, fmt.Errorf("ray %q: %w", s, err)
		}
		f[i] = v
	}
	dir := v3.Vec{X: f[3], Y: f[4], Z: f[5]}
	if dir == (v3.Vec{}) {
		return kernel.Ray{}, fmt.Errorf("ray %q: zero direction", s)
	}
	return kernel.Ray{Origin: v3.Vec{X: f[0], Y: f[1], Z: f[2]}, Dir: dir}, nil
}

// serveMetrics serves m on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(m, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
	return nil
}
