// jobctl is a command-line control client for jobs running on a
// remote cluster. One-shot commands perform a single control call;
// watch mode attaches to a job, keeps its liveness lease renewed, and
// polls status until the job reaches a terminal state.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"jobclient/internal/cluster"
	"jobclient/internal/cluster/dockersession"
	"jobclient/internal/cluster/rest"
	"jobclient/internal/config"
	"jobclient/internal/health"
	"jobclient/internal/heartbeat"
	"jobclient/internal/jobclient"
	"jobclient/internal/observability"
)

const usage = `Usage: jobctl <command> [flags] <job-id>

Commands:
  status        print the job's current status
  cancel        cancel the job
  savepoint     trigger a savepoint (-dir, -format)
  stop          stop the job with a savepoint (-dir, -format, -drain)
  result        wait for the job result and print it
  accumulators  fetch and print the job's accumulators
  watch         attach to the job: heartbeat + status polling (-interval)

Configuration is taken from the environment (CONTROL_PLANE_URL,
API_TOKEN_FILE, DOCKER_DISCOVERY, ...).`

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, usage)
		return errors.New("missing command")
	}
	command, args := args[0], args[1:]

	ctx := context.Background()
	cfg := config.LoadClientConfig()

	provider, closeProvider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeProvider(); err != nil {
			slog.Warn("Provider close error", "error", err)
		}
	}()

	switch command {
	case "status":
		return runStatus(ctx, cfg, provider, args)
	case "cancel":
		return runCancel(ctx, cfg, provider, args)
	case "savepoint":
		return runSavepoint(ctx, cfg, provider, args)
	case "stop":
		return runStop(ctx, cfg, provider, args)
	case "result":
		return runResult(ctx, cfg, provider, args)
	case "accumulators":
		return runAccumulators(ctx, cfg, provider, args)
	case "watch":
		return runWatch(ctx, cfg, provider, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// newProvider builds the channel provider: Docker discovery when
// enabled, otherwise a direct REST endpoint.
func newProvider(ctx context.Context, cfg *config.ClientConfig) (cluster.Provider, func() error, error) {
	if cfg.DockerDiscovery {
		label := cfg.DockerLabel
		if label == "" {
			label = dockersession.DefaultLabel
		}
		p, err := dockersession.NewProvider(ctx, dockersession.Config{
			Label:          label,
			ControlPort:    cfg.ControlPort,
			APIToken:       cfg.APIToken,
			RequestTimeout: cfg.RequestTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Discovered control plane", "endpoint", p.Endpoint())
		return p, p.Close, nil
	}

	p, err := rest.NewProvider(rest.Config{
		BaseURL:        cfg.ControlPlaneURL,
		APIToken:       cfg.APIToken,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return p, func() error { return nil }, nil
}

func newClient(provider cluster.Provider, jobID string, metrics jobclient.MetricsRecorder) (*jobclient.Client, error) {
	return jobclient.New(jobclient.Config{
		JobID:    cluster.JobID(jobID),
		Provider: provider,
		Metrics:  metrics,
	})
}

// jobArg parses the flags and returns the trailing job-id argument.
func jobArg(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one job id, got %d arguments", fs.NArg())
	}
	return fs.Arg(0), nil
}

func parseFormat(s string) (cluster.SavepointFormat, error) {
	switch strings.ToUpper(s) {
	case "", string(cluster.SavepointFormatCanonical):
		return cluster.SavepointFormatCanonical, nil
	case string(cluster.SavepointFormatNative):
		return cluster.SavepointFormatNative, nil
	default:
		return "", fmt.Errorf("unknown savepoint format %q", s)
	}
}

// printJSON writes the command's result to stdout; logs go to stderr.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runStatus(ctx context.Context, cfg *config.ClientConfig, provider cluster.Provider, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	client, err := newClient(provider, jobID, nil)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	status, err := client.Status(callCtx).Get(callCtx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"jobId": jobID, "status": status})
}

func runCancel(ctx context.Context, cfg *config.ClientConfig, provider cluster.Provider, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	client, err := newClient(provider, jobID, nil)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	if _, err := client.Cancel(callCtx).Get(callCtx); err != nil {
		return err
	}
	slog.Info("Job cancelled", "jobId", jobID)
	return nil
}

func runSavepoint(ctx context.Context, cfg *config.ClientConfig, provider cluster.Provider, args []string) error {
	fs := flag.NewFlagSet("savepoint", flag.ContinueOnError)
	dir := fs.String("dir", "", "target directory for the savepoint")
	formatFlag := fs.String("format", "", "savepoint format: CANONICAL or NATIVE")
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	format, err := parseFormat(*formatFlag)
	if err != nil {
		return err
	}
	client, err := newClient(provider, jobID, nil)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	location, err := client.TriggerSavepoint(callCtx, *dir, format).Get(callCtx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"jobId": jobID, "savepoint": location})
}

func runStop(ctx context.Context, cfg *config.ClientConfig, provider cluster.Provider, args []string) error {
	fs := flag.NewFlagSet("stop", flag.ContinueOnError)
	dir := fs.String("dir", "", "target directory for the savepoint")
	formatFlag := fs.String("format", "", "savepoint format: CANONICAL or NATIVE")
	drain := fs.Bool("drain", false, "flush all in-flight data before stopping")
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	format, err := parseFormat(*formatFlag)
	if err != nil {
		return err
	}
	client, err := newClient(provider, jobID, nil)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	location, err := client.StopWithSavepoint(callCtx, *drain, *dir, format).Get(callCtx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"jobId": jobID, "savepoint": location})
}

func runResult(ctx context.Context, cfg *config.ClientConfig, provider cluster.Provider, args []string) error {
	fs := flag.NewFlagSet("result", flag.ContinueOnError)
	wait := fs.Duration("wait", 10*time.Minute, "how long to wait for the job result")
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	client, err := newClient(provider, jobID, nil)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()
	result, err := client.ExecutionResult(callCtx).Get(callCtx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"jobId":        result.JobID,
		"netRuntime":   result.NetRuntime.String(),
		"accumulators": result.Accumulators,
	})
}

func runAccumulators(ctx context.Context, cfg *config.ClientConfig, provider cluster.Provider, args []string) error {
	fs := flag.NewFlagSet("accumulators", flag.ContinueOnError)
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}
	client, err := newClient(provider, jobID, nil)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	accumulators, err := client.Accumulators(callCtx).Get(callCtx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"jobId": jobID, "accumulators": accumulators})
}

// runWatch attaches to a job: a heartbeat reporter keeps the liveness
// lease renewed, a metrics server exposes /metrics and health probes,
// and the status is polled until a terminal state or a signal.
func runWatch(ctx context.Context, cfg *config.ClientConfig, provider cluster.Provider, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", 5*time.Second, "status poll interval")
	jobID, err := jobArg(fs, args)
	if err != nil {
		return err
	}

	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}
	client, err := newClient(provider, jobID, metrics)
	if err != nil {
		return err
	}

	healthChecker := health.NewChecker(provider)
	reporter := heartbeat.NewReporter(client, heartbeat.LoadConfigFromEnv(), metrics)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, healthChecker.Liveness(r.Context()))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, healthChecker.Readiness(r.Context()))
	})
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	shutdown := func() {
		healthChecker.SetShuttingDown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := reporter.Close(shutdownCtx); err != nil {
			slog.Warn("Heartbeat shutdown error", "error", err)
		}
		stats := reporter.Stats()
		slog.Info("Heartbeat stats", "sent", stats.Sent, "failed", stats.Failed, "skipped", stats.Skipped)

		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	slog.Info("Watching job", "jobId", jobID, "interval", *interval)
	for {
		select {
		case sig := <-quit:
			slog.Info("Received shutdown signal", "signal", sig)
			shutdown()
			return nil

		case err := <-serverErr:
			shutdown()
			return err

		case <-ticker.C:
			pollCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			status, err := client.Status(pollCtx).Get(pollCtx)
			cancel()
			if err != nil {
				slog.Warn("Status poll failed", "error", err)
				continue
			}
			slog.Info("Job status", "jobId", jobID, "status", status)
			if !status.IsGloballyTerminal() {
				continue
			}
			shutdown()
			return printJSON(map[string]any{"jobId": jobID, "status": status})
		}
	}
}

func writeHealth(w http.ResponseWriter, resp *health.Response) {
	w.Header().Set("Content-Type", "application/json")
	if !resp.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}
