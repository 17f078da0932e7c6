package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/F-O-T/contentagen-nx-sub000/internal/data/gateway"
	"github.com/F-O-T/contentagen-nx-sub000/internal/data/graph"
	"github.com/F-O-T/contentagen-nx-sub000/internal/data/repos"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/orchestrator"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline/stages"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/pipeline/steps"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/prompts"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/queue"
	jobrt "github.com/F-O-T/contentagen-nx-sub000/internal/jobs/runtime"
	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/worker"
	"github.com/F-O-T/contentagen-nx-sub000/internal/observability"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
	"github.com/F-O-T/contentagen-nx-sub000/internal/realtime"
	"github.com/F-O-T/contentagen-nx-sub000/internal/realtime/bus"
	"github.com/F-O-T/contentagen-nx-sub000/internal/services"
	"github.com/F-O-T/contentagen-nx-sub000/internal/similarity"
	"github.com/F-O-T/contentagen-nx-sub000/internal/temporalx/pipelinerun"
	"github.com/F-O-T/contentagen-nx-sub000/internal/temporalx/temporalworker"
)

type Services struct {
	Repos   repos.Repos
	Gateway gateway.Gateway

	Hub      *realtime.SSEHub
	Bus      bus.Bus
	Notifier services.StatusNotifier

	Store        queue.Store
	Listener     *queue.Listener
	Orchestrator *orchestrator.Orchestrator
	Similarity   *similarity.Engine
	Executor     *worker.Executor

	// Nil when metrics are disabled.
	Metrics *observability.Metrics
	db      *gorm.DB

	// Exactly one of Runtime and TemporalWorker is set.
	Runtime        *worker.Runtime
	TemporalWorker *temporalworker.Runner
}

func wireServices(log *logger.Logger, cfg Config, clients Clients) (Services, error) {
	log.Info("Wiring services...")
	var s Services
	db := clients.Gorm()
	s.db = db
	s.Metrics = observability.Init(log, cfg.Metrics)

	s.Repos = repos.New(db, log)
	s.Gateway = gateway.New(db, log, s.Repos)

	// Status delivery
	s.Hub = realtime.NewSSEHub(log)
	var seq realtime.Sequencer
	if clients.Redis != nil {
		b, err := bus.NewRedisBus(log, clients.Redis, cfg.Redis.Channel)
		if err != nil {
			return Services{}, fmt.Errorf("init status bus: %w", err)
		}
		s.Bus = b
		seq = realtime.NewRedisSequencer(clients.Redis)
	}
	s.Notifier = services.NewStatusNotifier(log, s.Hub, s.Bus, seq)

	// Queue
	switch cfg.Queue.Backend {
	case BackendMemory:
		s.Store = queue.NewMemoryStore()
	default:
		gs := queue.NewGormStore(db, log, s.Repos)
		s.Store = gs
		if cfg.Queue.Backend == BackendPostgres && clients.DB != nil {
			s.Listener = queue.NewListener(log, cfg.Postgres.DSN(), gs.Signal)
		}
	}

	defs := pipeline.Definitions()
	orch, err := orchestrator.New(log, s.Store, s.Notifier, defs, cfg.RetryPolicy())
	if err != nil {
		return Services{}, fmt.Errorf("init orchestrator: %w", err)
	}
	s.Orchestrator = orch

	s.Similarity = similarity.NewEngine(clients.OpenAI, cfg.Similarity)

	set, err := loadPrompts(cfg.Pipeline.PromptsFile)
	if err != nil {
		return Services{}, err
	}

	registry := jobrt.NewRegistry()
	deps := &steps.Deps{
		Log:              log,
		Store:            s.Gateway,
		AI:               clients.OpenAI,
		Prompts:          set,
		Similarity:       s.Similarity,
		Sources:          clients.Sources,
		Graph:            graph.NewKnowledgeProjector(clients.Neo4j, log),
		EmbedConcurrency: cfg.Pipeline.EmbedConcurrency,
		IdeaCount:        cfg.Pipeline.IdeaCount,
	}
	if err := stages.Register(registry, deps, defs); err != nil {
		return Services{}, fmt.Errorf("register stages: %w", err)
	}

	s.Executor = worker.NewExecutor(log, orch, registry, worker.ExecutorOptions{
		StageTimeout: cfg.Queue.StageTimeout,
		Metrics:      s.Metrics,
	})

	if cfg.Queue.Backend == BackendTemporal {
		orch.SetLauncher(pipelinerun.NewLauncher(clients.Temporal, cfg.Temporal.TaskQueue, cfg.RetryPolicy(), cfg.Queue.StageTimeout))
		s.TemporalWorker, err = temporalworker.NewRunner(log, clients.Temporal, cfg.Temporal, &pipelinerun.Activities{
			Log:  log,
			Orch: orch,
			Exec: s.Executor,
		})
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
	} else {
		s.Runtime = worker.NewRuntime(log, s.Store, s.Executor, worker.RuntimeOptions{
			Concurrency:  cfg.Concurrency(),
			PollInterval: cfg.Queue.PollInterval,
		})
	}

	return s, nil
}

func loadPrompts(path string) (*prompts.Set, error) {
	if path == "" {
		return prompts.Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	return prompts.Parse(raw)
}

// start launches the background loops. They stop when ctx ends.
func (s *Services) start(ctx context.Context, log *logger.Logger) error {
	if s.Bus != nil {
		if err := s.Bus.StartForwarder(ctx, s.Hub.Broadcast); err != nil {
			return fmt.Errorf("start status forwarder: %w", err)
		}
	}
	if s.Listener != nil {
		go s.Listener.Run(ctx)
	}
	if s.TemporalWorker != nil {
		if err := s.TemporalWorker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	if s.Runtime != nil {
		s.Runtime.Start(ctx)
	}
	if _, ok := s.Store.(*queue.GormStore); ok {
		s.Metrics.StartJobQueueCollector(ctx, log, s.db)
	}
	log.Info("Pipeline workers started")
	return nil
}

func (s *Services) wait() {
	if s.Runtime != nil {
		s.Runtime.Wait()
	}
}
