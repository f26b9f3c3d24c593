// Package flags holds the command line flags shared by the binaries and the
// helpers turning them into configured components.
package flags

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/omnichain-configurator/common"
	"github.com/ruteri/omnichain-configurator/httpserver"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/metrics"
	"github.com/ruteri/omnichain-configurator/parallel"
	"github.com/ruteri/omnichain-configurator/storage"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
		Output:  cCtx.App.ErrWriter,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, registry *metrics.Registry) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		Metrics:                  registry,
		RunTimeout:               cCtx.Duration(TimeoutFlag.Name),
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		// Runs read every configured endpoint.
		WriteTimeout: cCtx.Duration(TimeoutFlag.Name) + 10*time.Second,
	}
}

// ParseRPCs parses eid=url pairs.
func ParseRPCs(values []string) (map[interfaces.EndpointID]string, error) {
	rpcs := make(map[interfaces.EndpointID]string, len(values))
	for _, v := range values {
		eid, url, ok := strings.Cut(v, "=")
		if !ok || url == "" {
			return nil, fmt.Errorf("invalid --%s %q, expected eid=url", RPCFlag.Name, v)
		}
		id, err := interfaces.ParseEndpointID(eid)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s %q: %w", RPCFlag.Name, v, err)
		}
		rpcs[id] = url
	}
	return rpcs, nil
}

// ParallelOptions reads the concurrency limit and failure policy.
func ParallelOptions(cCtx *cli.Context) parallel.Options {
	opts := parallel.Options{Limit: cCtx.Int(ConcurrencyFlag.Name), Policy: parallel.FailFast}
	if cCtx.Bool(ContinueOnErrorFlag.Name) {
		opts.Policy = parallel.Collect
	}
	return opts
}

// Storage creates the archive backend from --store. Returns nil without
// locations.
func Storage(cCtx *cli.Context, log *slog.Logger) (interfaces.StorageBackend, error) {
	locations := cCtx.StringSlice(StoreFlag.Name)
	if len(locations) == 0 {
		return nil, nil
	}
	return storage.NewStorageBackendFactory(log).CreateMultiBackend(locations)
}

var ConfigFlag = &cli.StringFlag{
	Name:     "config",
	Aliases:  []string{"c"},
	Required: true,
	Usage:    "topology YAML file",
	EnvVars:  []string{"CONFIGURATOR_CONFIG"},
}

var RPCFlag = &cli.StringSliceFlag{
	Name:  "rpc",
	Usage: "JSON-RPC URL for an endpoint as eid=url, overrides the topology (repeatable)",
}

var ConcurrencyFlag = &cli.IntFlag{
	Name:  "concurrency",
	Value: 8,
	Usage: "maximum concurrent reads and configurator calls, 0 for unbounded",
}

var ContinueOnErrorFlag = &cli.BoolFlag{
	Name:  "continue-on-error",
	Value: false,
	Usage: "skip entries on unreachable endpoints instead of aborting the run",
}

var StoreFlag = &cli.StringSliceFlag{
	Name:  "store",
	Usage: "storage URI to archive plans and reports in (file://, s3://, ipfs://, vault://), repeatable",
}

var TimeoutFlag = &cli.DurationFlag{
	Name:  "timeout",
	Value: 2 * time.Minute,
	Usage: "deadline for a single reconciliation run",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "configurator",
	Usage: "add 'service' tag to logs",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}
var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var RunFlags = []cli.Flag{
	ConfigFlag,
	RPCFlag,
	ConcurrencyFlag,
	ContinueOnErrorFlag,
	StoreFlag,
	TimeoutFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	MetricsAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
}
