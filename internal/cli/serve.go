package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/purplemerit/merit/internal/config"
	"github.com/purplemerit/merit/internal/logger"
	"github.com/purplemerit/merit/internal/observability"
	"github.com/purplemerit/merit/pkg/agents"
	"github.com/purplemerit/merit/pkg/gateway"
	"github.com/purplemerit/merit/pkg/memory"
	"github.com/purplemerit/merit/pkg/orchestrator"
	"github.com/purplemerit/merit/pkg/resource"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Merit coordination server",
	Long: `Run the Merit coordination server in the foreground.
The server opens the resource stores, starts memory consolidation and
serves the agent protocol gateway until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()
	log := lg.GetZerolog()

	if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}
	defer observability.GetAuditLogger().Close()

	records, err := resource.NewRecordStore(resource.RecordStoreConfig{
		DBPath: cfg.Stores.RecordPath,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer records.Close()

	graph, err := resource.NewGraphStore(resource.GraphStoreConfig{
		DBPath: cfg.Stores.GraphPath,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("failed to open graph store: %w", err)
	}
	defer graph.Close()

	aggregates, err := resource.NewAggregateStore(resource.AggregateStoreConfig{
		DBPath: cfg.Stores.AggregatePath,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("failed to open aggregate store: %w", err)
	}
	defer aggregates.Close()

	cache, err := resource.NewCacheStore(resource.CacheStoreConfig{
		DefaultTTL:    cfg.Memory.ShortTermTTL,
		SweepInterval: cfg.Memory.SweepInterval,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("failed to create cache store: %w", err)
	}
	defer cache.Close()

	resources := resource.NewRouter(records, graph, aggregates, cache)

	memories, err := memory.NewManager(memory.ManagerConfig{
		Cache:   cache,
		Records: records,
		Graph:   graph,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("failed to create memory manager: %w", err)
	}

	consolidator, err := memory.NewConsolidator(memory.ConsolidatorConfig{
		Manager:             memories,
		ImportanceThreshold: cfg.Memory.ImportanceThreshold,
		Schedule:            cfg.Memory.ConsolidationSchedule,
		DecaySchedule:       cfg.Memory.DecaySchedule,
		DecayFactor:         cfg.Memory.DecayFactor,
		Logger:              log,
	})
	if err != nil {
		return fmt.Errorf("failed to create consolidator: %w", err)
	}

	registry := orchestrator.NewRegistry()
	for _, agentCfg := range cfg.Agents {
		agent, err := buildAgent(agentCfg, memories, log)
		if err != nil {
			return err
		}
		if err := registry.Register(agent); err != nil {
			return fmt.Errorf("failed to register agent %s: %w", agentCfg.Type, err)
		}
	}
	registry.Seal()

	var guard *orchestrator.TransitionGuard
	if cfg.Orchestrator.EnforceTransitions {
		guard = orchestrator.NewTransitionGuard(true)
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Registry:        registry,
		Memory:          memories,
		Records:         records,
		HandoffDeadline: cfg.Orchestrator.HandoffDeadline,
		Guard:           guard,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	server, err := gateway.NewServer(gateway.Config{
		Host:              cfg.Gateway.Host,
		Port:              cfg.Gateway.Port,
		SharedSecret:      cfg.Gateway.SharedSecret,
		RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
		MaxConcurrent:     cfg.Gateway.MaxConcurrent,
		Resources:         resources,
		Memory:            memories,
		Orchestrator:      orch,
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	orch.SetNotifier(server)

	consolidator.Start()
	defer consolidator.Stop()

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}

	if err := writePIDFile(); err != nil {
		log.Warn().Err(err).Msg("Failed to write PID file")
	}
	defer removePIDFile()

	log.Info().
		Str("version", version).
		Int("agents", len(registry.Agents())).
		Msg("Merit server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("Gateway shutdown error")
	}
	return nil
}

// buildAgent maps a configured agent type to its implementation
func buildAgent(cfg config.AgentConfig, memories *memory.Manager, log zerolog.Logger) (orchestrator.Agent, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Type {
	case "LeadTriage":
		return agents.NewTriageAgent(memories, timeout, log), nil
	case "Engagement":
		return agents.NewEngagementAgent(memories, timeout, log), nil
	case "Optimizer", "CampaignOptimizer":
		return agents.NewOptimizerAgent(memories, timeout, log), nil
	}
	return nil, fmt.Errorf("unknown agent type: %s", cfg.Type)
}

func getPIDFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "merit.pid")
	}
	return filepath.Join(home, ".merit", "merit.pid")
}

func writePIDFile() error {
	pidFile := getPIDFilePath()
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

func removePIDFile() {
	_ = os.Remove(getPIDFilePath())
}
