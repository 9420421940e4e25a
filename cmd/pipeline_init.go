package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/domainres"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/provider"
	"github.com/sells-group/leadgen-cli/internal/proxy"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/sink"
	"github.com/sells-group/leadgen-cli/internal/state"
)

// pipelineEnv holds the initialized store, sink, health tracker, and
// orchestrator needed by the run/serve commands.
type pipelineEnv struct {
	Store        state.Store
	Sink         sink.Sink
	Health       *resilience.HealthTracker
	Manifest     *config.Manifest
	Orchestrator *pipeline.Orchestrator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Sink != nil {
		_ = pe.Sink.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured state backend.
func initStore(ctx context.Context) (state.Store, error) {
	switch cfg.State.Driver {
	case "sqlite":
		return state.NewSQLite(cfg.State.Path)
	case "postgres":
		return state.NewPostgres(ctx, cfg.State.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown state driver %q", cfg.State.Driver)
	}
}

// initPipeline loads the manifest, opens the store and sink, binds clients to
// every configured instance, and builds the orchestrator. Callers should
// defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	manifest, err := config.LoadManifest(cfg.Pipeline.Manifest)
	if err != nil {
		return nil, err
	}
	instances := manifest.Instances()

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate state store")
	}

	out, err := sink.New(cfg.Output.Format, cfg.Output.Dir)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	health := resilience.NewHealthTracker(resilience.HealthConfig{
		FailureThreshold: cfg.Health.FailureThreshold,
		CooldownBase:     time.Duration(cfg.Health.CooldownBaseSecs) * time.Second,
		CooldownMax:      time.Duration(cfg.Health.CooldownMaxSecs) * time.Second,
		OnStateChange: func(instance string, from, to resilience.Status) {
			zap.L().Info("instance state change",
				zap.String("instance", instance),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	pool := resilience.NewInstancePool(instances, health)

	rotator, err := proxy.NewRotator(manifest.Proxies, cfg.Proxy.Enabled)
	if err != nil {
		_ = out.Close()
		_ = st.Close()
		return nil, err
	}
	if rotator.Size() > 0 {
		zap.L().Info("proxy rotation enabled", zap.Int("endpoints", rotator.Size()))
	}

	searchers, err := provider.BuildSearchers(cfg, instances)
	if err != nil {
		_ = out.Close()
		_ = st.Close()
		return nil, err
	}
	finders, err := provider.BuildFinders(cfg, instances)
	if err != nil {
		_ = out.Close()
		_ = st.Close()
		return nil, err
	}

	orch := pipeline.New(st, out, pool, health, rotator, domainres.NewResolver(), searchers, finders, pipeline.Options{
		Workers:            cfg.Pipeline.Workers,
		MaxAttemptsPerUnit: cfg.Pipeline.MaxAttemptsPerUnit,
		RequestsPerSecond:  cfg.Pipeline.RequestsPerSecond,
	})

	return &pipelineEnv{
		Store:        st,
		Sink:         out,
		Health:       health,
		Manifest:     manifest,
		Orchestrator: orch,
	}, nil
}
