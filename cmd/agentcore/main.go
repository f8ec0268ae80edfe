// Command agentcore runs the autonomous agent core: a run-once driver for
// local testing and the tool-worker subprocess used for isolated tool
// execution. The HTTP transport is an external collaborator and lives
// elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/application"
	"github.com/ngoclaw/agentcore/internal/domain/audit"
	"github.com/ngoclaw/agentcore/internal/domain/cognition"
	"github.com/ngoclaw/agentcore/internal/domain/memory"
	"github.com/ngoclaw/agentcore/internal/domain/promptsafety"
	"github.com/ngoclaw/agentcore/internal/domain/safety"
	"github.com/ngoclaw/agentcore/internal/domain/tool"
	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
	"github.com/ngoclaw/agentcore/internal/infrastructure/config"
	"github.com/ngoclaw/agentcore/internal/infrastructure/embedding"
	"github.com/ngoclaw/agentcore/internal/infrastructure/llm"
	"github.com/ngoclaw/agentcore/internal/infrastructure/logger"
	"github.com/ngoclaw/agentcore/internal/infrastructure/observability"
	"github.com/ngoclaw/agentcore/internal/infrastructure/persistence"
	"github.com/ngoclaw/agentcore/internal/infrastructure/sandbox"
	"github.com/ngoclaw/agentcore/internal/infrastructure/tools"
	"github.com/ngoclaw/agentcore/internal/infrastructure/vectorstore"
)

func main() {
	root := &cobra.Command{
		Use:           "agentcore",
		Short:         "Autonomous agent execution core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunOnceCmd(), newToolWorkerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRunOnceCmd() *cobra.Command {
	var (
		configPath      string
		observationJSON string
		goalID          string
		goalTitle       string
		goalDesc        string
		goalPriority    float64
		dryRun          string
		authHeader      string
		tenantID        string
	)

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Execute one cognitive cycle against an observation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, err := logger.NewLogger(logger.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
			})
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			runner, cleanup, err := buildRunner(cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			obs, err := readObservation(observationJSON, cmd.InOrStdin())
			if err != nil {
				return err
			}

			req := application.Request{
				Observation: obs,
				AuthHeader:  authHeader,
				TenantID:    tenantID,
				DryRun:      valueobject.DryRunMode(dryRun),
			}
			if goalTitle != "" {
				if goalID == "" {
					goalID = "goal-1"
				}
				req.Goal = &valueobject.Goal{
					ID:          goalID,
					Title:       goalTitle,
					Description: goalDesc,
					Priority:    goalPriority,
					Horizon:     valueobject.HorizonShort,
				}
			}

			result, err := runner.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (defaults to env-only configuration)")
	cmd.Flags().StringVar(&observationJSON, "observation", "", "observation JSON; '-' or empty reads stdin")
	cmd.Flags().StringVar(&goalID, "goal-id", "", "goal id")
	cmd.Flags().StringVar(&goalTitle, "goal", "", "goal title; empty runs without a goal")
	cmd.Flags().StringVar(&goalDesc, "goal-description", "", "goal description")
	cmd.Flags().Float64Var(&goalPriority, "goal-priority", 1, "goal priority")
	cmd.Flags().StringVar(&dryRun, "dry-run", "", `dry-run mode: "with-llm" or "without-llm"`)
	cmd.Flags().StringVar(&authHeader, "authorization", "", "Authorization header value")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id claim")
	return cmd
}

func newToolWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "tool-worker",
		Short:  "Internal: isolated tool execution worker (stdio protocol)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The worker owns a private copy of the registry, built from the
			// same environment-derived configuration as the parent.
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			registry := tool.InitializeToolRegistry()
			if err := tools.Register(registry, builtinToolOptions(cfg)); err != nil {
				return err
			}
			registry.Freeze()
			return sandbox.RunWorker(cmd.Context(), registry, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// buildRunner wires the full pipeline from configuration.
func buildRunner(cfg *config.Config, log *zap.Logger) (*application.Runner, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var embedder memory.EmbeddingProvider
	switch cfg.Memory.EmbeddingProvider {
	case config.EmbeddingProviderOllama:
		ollama, err := embedding.NewOllamaEmbedder(cfg.Memory.OllamaBaseURL, cfg.Memory.OllamaModel, log)
		if err != nil {
			return nil, nil, err
		}
		embedder = ollama
	default:
		embedder = embedding.NewHashEmbedder(cfg.Memory.VectorDimension)
	}

	var store memory.VectorStore
	if cfg.Memory.StorePath != "" {
		lance, err := vectorstore.NewLanceDBVectorStore(cfg.Memory.StorePath, embedder.Dimension(), log)
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { lance.Close() }) //nolint:errcheck
		store = lance
	} else {
		store = vectorstore.NewInProcessVectorStore()
	}

	repo, err := persistence.NewSQLiteMemoryRepository(cfg.Memory.DatabasePath)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { repo.Close() }) //nolint:errcheck

	base := memory.NewManager(store, repo, embedder, memory.ManagerConfig{
		HalfLifeMS: cfg.Memory.HalfLifeMS,
	}, log)

	registry := tool.InitializeToolRegistry()
	if err := tools.Register(registry, builtinToolOptions(cfg)); err != nil {
		cleanup()
		return nil, nil, err
	}
	registry.Freeze()

	isolator, err := sandbox.NewProcessIsolator(sandbox.IsolatorConfig{}, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	toolRunner, err := tool.NewRunner(tool.RunnerConfig{
		Timeout:            30 * time.Second,
		UseWorkerIsolation: true,
	}, registry, isolator, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	auditLogger := audit.NewLogger(safety.RedactorConfig{}, log, audit.NewZapSink(log))
	deps := application.RunnerDeps{
		Memory:     base,
		ToolRunner: toolRunner,
		LLM:        llmClient(log),
		Filter:     promptsafety.NewInjectionFilter(),
		Validator:  promptsafety.NewOutputValidator(),
		Gate:       application.NewPolicyGate(nil, toolRunner),
		Audit:      auditLogger,
		Auth:       application.NewAuthenticator(cfg.Auth.APIKey, cfg.Auth.TenantID),
		Limiter: safety.NewRateLimiter(safety.RateLimiterConfig{
			Capacity:     cfg.RateLimit.Capacity,
			RefillPerSec: cfg.RateLimit.RefillPerSec,
		}),
		Logger: log,
	}

	if cfg.ObsUI.Enabled {
		obsStore, err := observability.NewStore(observability.Config{
			DataDir:   cfg.ObsUI.DataDir,
			MaxRuns:   cfg.ObsUI.MaxRuns,
			MaxEvents: cfg.ObsUI.MaxEvents,
		}, log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, obsStore.Close)
		auditLogger.AddSink(obsStore)
		deps.ObsStore = obsStore
	}

	runner := application.NewRunner(application.RunnerConfig{
		RunTimeout:           time.Duration(cfg.Runtime.RunOnceTimeoutMS) * time.Millisecond,
		MaxMultiActSteps:     cfg.Runtime.MaxMultiActSteps,
		ObservabilityEnabled: cfg.ObsUI.Enabled,
	}, deps)

	if cfg.Heartbeat.Enabled {
		hb := application.NewHeartbeat(runner, time.Duration(cfg.Heartbeat.IntervalMS)*time.Millisecond, log)
		hb.Start()
		cleanups = append(cleanups, hb.Stop)
	}

	return runner, cleanup, nil
}

// llmClient builds the failover router. Concrete provider adapters are
// external collaborators; without any configured the stub answers with a
// plain pursue_goal decision so local runs still work end to end.
func llmClient(log *zap.Logger) cognition.LLMClient {
	router := llm.NewRouter(log)
	router.AddProvider(&llm.StubProvider{ProviderName: "builtin-stub"})
	return router
}

// builtinToolOptions derives the built-in tool wiring from configuration:
// the workspace root confines read_file, the SSRF filter gates http_fetch.
func builtinToolOptions(cfg *config.Config) tools.Options {
	return tools.Options{
		WorkspaceRoot: cfg.Workspace.FileRoot,
		URLFilter: safety.NewSSRFFilter(safety.URLFilterConfig{
			AllowedHTTPHosts: cfg.Safety.AllowedHTTPHosts,
			ResolveDNS:       cfg.Safety.ResolveDNS,
		}),
	}
}

func readObservation(raw string, stdin io.Reader) (*cognition.Observation, error) {
	var data []byte
	if raw == "" || raw == "-" {
		var err error
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read observation from stdin: %w", err)
		}
	} else {
		data = []byte(raw)
	}

	var body struct {
		Timestamp int64          `json:"timestamp"`
		State     map[string]any `json:"state"`
		Events    []string       `json:"events"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("parse observation JSON: %w", err)
	}
	if body.Timestamp == 0 {
		body.Timestamp = time.Now().UnixMilli()
	}
	if body.State == nil {
		body.State = map[string]any{}
	}
	return &cognition.Observation{
		Timestamp: body.Timestamp,
		State:     body.State,
		Events:    body.Events,
	}, nil
}
