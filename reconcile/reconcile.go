// Package reconcile runs the reconciliation pipeline of every configured
// domain: load live state, compare it with the desired topology, prune the
// entries that already match and propose actions for the rest.
//
// Each run owns a fresh evm session, handle memo and read cache. Nothing is
// shared between runs, so consecutive or concurrent runs always observe
// current state.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/omnichain-configurator/configurator"
	"github.com/ruteri/omnichain-configurator/diff"
	"github.com/ruteri/omnichain-configurator/domains/erc20"
	"github.com/ruteri/omnichain-configurator/domains/oapp"
	"github.com/ruteri/omnichain-configurator/domains/rewarder"
	"github.com/ruteri/omnichain-configurator/evm"
	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/handles"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/metrics"
	"github.com/ruteri/omnichain-configurator/parallel"
	"github.com/ruteri/omnichain-configurator/schema"
	"github.com/ruteri/omnichain-configurator/state"
)

// Plan is the outcome of one run.
type Plan struct {
	RunID     string    `json:"runId"`
	CreatedAt time.Time `json:"createdAt"`
	Mode      string    `json:"mode"`

	// Actions are proposed in execution order. Empty for reports.
	Actions []interfaces.Action `json:"actions"`
	Records []diff.Record       `json:"records"`

	// Failures lists the entries skipped because their endpoint could not be
	// read. Only populated under parallel.Collect.
	Failures []string `json:"failures,omitempty"`
}

// JSON serializes the plan.
func (p *Plan) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Reconciler reconciles a topology against live endpoints.
type Reconciler struct {
	topology *schema.Topology
	dial     evm.DialFunc
	opts     parallel.Options
	log      *slog.Logger
	metrics  *metrics.Registry
}

// Config holds the dependencies of a Reconciler.
type Config struct {
	Topology *schema.Topology
	Dial     evm.DialFunc
	Options  parallel.Options
	Log      *slog.Logger
	Metrics  *metrics.Registry
}

// New creates a reconciler. Sections absent from the topology are logged once
// and skipped by every run.
func New(cfg Config) (*Reconciler, error) {
	if cfg.Topology == nil {
		return nil, errors.New("reconciler requires a topology")
	}
	if cfg.Dial == nil {
		return nil, errors.New("reconciler requires a dial function")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	cfg.Topology.LogUnconfigured(log)

	return &Reconciler{
		topology: cfg.Topology,
		dial:     cfg.Dial,
		opts:     cfg.Options,
		log:      log,
		metrics:  cfg.Metrics,
	}, nil
}

// run holds the per-run arena.
type run struct {
	id        string
	log       *slog.Logger
	session   *evm.Session
	endpoints *handles.Memoized[interfaces.Endpoint]
	cache     *state.Cache
	plan      *Plan
}

func (r *Reconciler) newRun(mode string) *run {
	id := uuid.Must(uuid.NewRandom()).String()
	log := r.log.With(slog.String("runId", id))
	session := evm.NewSession(r.dial, log)
	return &run{
		id:        id,
		log:       log,
		session:   session,
		endpoints: handles.Memoize[interfaces.Endpoint](handles.ResolverFunc[interfaces.Endpoint](session.Resolve)),
		cache:     state.NewCache(r.metrics),
		plan: &Plan{
			RunID:     id,
			CreatedAt: time.Now().UTC(),
			Mode:      mode,
			Actions:   []interfaces.Action{},
			Records:   []diff.Record{},
		},
	}
}

// Run proposes the actions that bring every configured domain in line with
// the topology. The plan's records list the mismatches found.
func (r *Reconciler) Run(ctx context.Context) (*Plan, error) {
	plan, err := r.execute(ctx, diff.DiffOnly, true)
	r.metrics.RecordRun(err)
	return plan, err
}

// Report compares every configured domain with the topology without proposing
// actions.
func (r *Reconciler) Report(ctx context.Context, mode diff.Mode) (*Plan, error) {
	return r.execute(ctx, mode, false)
}

func (r *Reconciler) execute(ctx context.Context, mode diff.Mode, configure bool) (*Plan, error) {
	kind := "report/" + mode.String()
	if configure {
		kind = "plan"
	}
	run := r.newRun(kind)
	defer run.session.Close()

	start := time.Now()
	run.log.Info("Starting reconciliation", slog.String("mode", kind), slog.String("policy", r.opts.Policy.String()))

	if r.topology.OApp != nil {
		desired, err := r.topology.OAppGraph()
		if err != nil {
			return nil, err
		}
		factory := handles.Narrow[interfaces.Endpoint, interfaces.OApp](run.endpoints)
		err = reconcileDomain(ctx, r, run, oapp.Domain, desired,
			oapp.NewLoader(factory, run.cache, r.opts, run.log, r.metrics),
			oapp.Configure(run.cache, r.configuratorOptions(run)...),
			factory, mode, configure)
		if err != nil {
			return nil, err
		}
	}

	if r.topology.ERC20 != nil {
		desired, err := r.topology.ERC20Graph()
		if err != nil {
			return nil, err
		}
		factory := handles.Narrow[interfaces.Endpoint, interfaces.ERC20](run.endpoints)
		err = reconcileDomain(ctx, r, run, erc20.Domain, desired,
			erc20.NewLoader(factory, run.cache, r.opts, run.log, r.metrics),
			erc20.Configure(run.cache, r.configuratorOptions(run)...),
			factory, mode, configure)
		if err != nil {
			return nil, err
		}
	}

	if r.topology.Rewarder != nil {
		desired, err := r.topology.RewarderGraph()
		if err != nil {
			return nil, err
		}
		factory := handles.Narrow[interfaces.Endpoint, rewarder.Handle](run.endpoints)
		err = reconcileDomain(ctx, r, run, rewarder.Domain, desired,
			rewarder.NewLoader(factory, run.cache, r.opts, run.log, r.metrics),
			rewarder.Configure(run.cache, r.configuratorOptions(run)...),
			factory, mode, configure)
		if err != nil {
			return nil, err
		}
	}

	run.log.Info("Reconciliation finished",
		slog.Int("actions", len(run.plan.Actions)),
		slog.Int("records", len(run.plan.Records)),
		slog.Int("failures", len(run.plan.Failures)),
		slog.Int("endpoints", run.endpoints.Len()),
		slog.Int("reads", run.cache.Len()),
		slog.Duration("took", time.Since(start)))

	return run.plan, nil
}

func (r *Reconciler) configuratorOptions(run *run) []configurator.Option {
	return []configurator.Option{
		configurator.WithLimit(r.opts.Limit),
		configurator.WithPolicy(r.opts.Policy),
		configurator.WithLogger(run.log),
	}
}

func reconcileDomain[N, E, H any](
	ctx context.Context,
	r *Reconciler,
	run *run,
	domain string,
	desired *graph.Graph[N, E],
	loader *state.Loader[N, E, H],
	configure configurator.Configurator[N, E, H],
	factory handles.Factory[H],
	mode diff.Mode,
	propose bool,
) error {
	log := run.log.With(slog.String("domain", domain))

	live, err := loader.LoadState(ctx, desired)
	if err != nil {
		var partial *parallel.PartialFailure
		if !errors.As(err, &partial) {
			return fmt.Errorf("%s: loading live state: %w", domain, err)
		}
		for _, f := range partial.Failures {
			run.plan.Failures = append(run.plan.Failures, fmt.Sprintf("%s: %v", domain, f.Err))
		}
		log.Warn("Live state loaded partially", slog.Int("failed", len(partial.Failures)), slog.Int("total", partial.Total))
	}

	records := diff.Compare(desired, live, mode, r.topology.Labeler())
	run.plan.Records = append(run.plan.Records, records...)
	mismatched := diff.Prune(desired, live)
	r.metrics.SetMismatched(domain, mismatched.Len())

	if !propose {
		return nil
	}

	actions, err := configure(ctx, mismatched, factory)
	if err != nil {
		var partial *parallel.PartialFailure
		if !errors.As(err, &partial) {
			return fmt.Errorf("%s: configuring: %w", domain, err)
		}
		for _, f := range partial.Failures {
			run.plan.Failures = append(run.plan.Failures, fmt.Sprintf("%s: %v", domain, f.Err))
		}
	}
	run.plan.Actions = append(run.plan.Actions, actions...)
	r.metrics.RecordActions(domain, len(actions))

	log.Info("Domain reconciled",
		slog.Int("desired", desired.Len()),
		slog.Int("mismatched", mismatched.Len()),
		slog.Int("actions", len(actions)))
	return nil
}
