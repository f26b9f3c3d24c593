package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/omnichain-configurator/cmd/flags"
	"github.com/ruteri/omnichain-configurator/common"
	"github.com/ruteri/omnichain-configurator/diff"
	"github.com/ruteri/omnichain-configurator/evm"
	"github.com/ruteri/omnichain-configurator/httpserver"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/metrics"
	"github.com/ruteri/omnichain-configurator/reconcile"
	"github.com/ruteri/omnichain-configurator/schema"
	"github.com/ruteri/omnichain-configurator/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "configurator",
		Usage:   "Reconcile per-network contract configuration against a topology file",
		Version: common.Version,
		Flags:   flags.CommonFlags,
		Commands: []*cli.Command{
			{
				Name:   "plan",
				Usage:  "Print the actions that bring every endpoint in line with the topology",
				Flags:  flags.RunFlags,
				Action: runPlan,
			},
			{
				Name:  "report",
				Usage: "Compare live state with the topology",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "mode", Value: "diff", Usage: "diff or full"},
					&cli.StringFlag{Name: "format", Value: "table", Usage: "table or json"},
				}, flags.RunFlags...),
				Action: runReport,
			},
			{
				Name:   "serve",
				Usage:  "Serve plans and reports over HTTP",
				Flags:  append(append([]cli.Flag{}, flags.RunFlags...), flags.ServerFlags...),
				Action: runServe,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type env struct {
	log        *slog.Logger
	metrics    *metrics.Registry
	reconciler *reconcile.Reconciler
	storage    interfaces.StorageBackend
}

func setup(cCtx *cli.Context) (*env, error) {
	logger := flags.SetupLogger(cCtx)

	topology, err := schema.Load(cCtx.String(flags.ConfigFlag.Name))
	if err != nil {
		return nil, err
	}

	rpcs := topology.RPCs()
	overrides, err := flags.ParseRPCs(cCtx.StringSlice(flags.RPCFlag.Name))
	if err != nil {
		return nil, err
	}
	for eid, url := range overrides {
		rpcs[eid] = url
	}

	backend, err := flags.Storage(cCtx, logger)
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()
	reconciler, err := reconcile.New(reconcile.Config{
		Topology: topology,
		Dial:     evm.DialRPC(rpcs, logger),
		Options:  flags.ParallelOptions(cCtx),
		Log:      logger,
		Metrics:  registry,
	})
	if err != nil {
		return nil, err
	}

	return &env{log: logger, metrics: registry, reconciler: reconciler, storage: backend}, nil
}

func runContext(cCtx *cli.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, cCtx.Duration(flags.TimeoutFlag.Name))
	return ctx, func() {
		cancel()
		stop()
	}
}

func (e *env) archive(ctx context.Context, contentType interfaces.ContentType, plan *reconcile.Plan) error {
	if e.storage == nil {
		return nil
	}
	id, err := storage.StoreJSON(ctx, e.storage, contentType, plan)
	if err != nil {
		return err
	}
	e.log.Info("Archived run",
		slog.String("type", contentType.String()),
		slog.String("runId", plan.RunID),
		slog.String("contentID", id.String()))
	return nil
}

func runPlan(cCtx *cli.Context) error {
	e, err := setup(cCtx)
	if err != nil {
		return err
	}
	ctx, cancel := runContext(cCtx)
	defer cancel()

	plan, err := e.reconciler.Run(ctx)
	if err != nil {
		return err
	}
	if err := e.archive(ctx, interfaces.PlanType, plan); err != nil {
		return err
	}

	fmt.Fprint(cCtx.App.ErrWriter, diff.Render(plan.Records))
	data, err := plan.JSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cCtx.App.Writer, string(data))
	return err
}

func runReport(cCtx *cli.Context) error {
	mode, err := diff.ParseMode(cCtx.String("mode"))
	if err != nil {
		return err
	}
	format := cCtx.String("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	e, err := setup(cCtx)
	if err != nil {
		return err
	}
	ctx, cancel := runContext(cCtx)
	defer cancel()

	report, err := e.reconciler.Report(ctx, mode)
	if err != nil {
		return err
	}
	if err := e.archive(ctx, interfaces.ReportType, report); err != nil {
		return err
	}

	if format == "table" {
		_, err = fmt.Fprint(cCtx.App.Writer, diff.Render(report.Records))
		return err
	}
	data, err := report.JSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cCtx.App.Writer, string(data))
	return err
}

func runServe(cCtx *cli.Context) error {
	e, err := setup(cCtx)
	if err != nil {
		return err
	}

	handler := httpserver.NewHandler(e.reconciler, e.storage, e.log)
	server, err := httpserver.New(flags.ConfigureServer(cCtx, e.log, e.metrics), handler)
	if err != nil {
		return err
	}
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	e.log.Info("Shutdown signal received")

	server.Shutdown()
	return nil
}
