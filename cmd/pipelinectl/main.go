package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nova-quant/pipeline/internal/builtin"
	"github.com/nova-quant/pipeline/internal/cancelbus"
	"github.com/nova-quant/pipeline/internal/compiler"
	"github.com/nova-quant/pipeline/internal/config"
	"github.com/nova-quant/pipeline/internal/dispatch"
	"github.com/nova-quant/pipeline/internal/domain"
	"github.com/nova-quant/pipeline/internal/executor"
	"github.com/nova-quant/pipeline/internal/logging"
	"github.com/nova-quant/pipeline/internal/metrics"
	"github.com/nova-quant/pipeline/internal/observability"
	"github.com/nova-quant/pipeline/internal/registry"
	"github.com/nova-quant/pipeline/internal/runstate"
	"github.com/nova-quant/pipeline/internal/sandbox"
)

// Exit codes, per the IR wire format section of the pipeline description:
// 0 success, 2 compilation failure, 3 execution failure, 130 cancelled.
const (
	exitSuccess     = 0
	exitCompileFail = 2
	exitRunFail     = 3
	exitCancelled   = 130
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "pipelinectl",
		Short: "Compile and run backtesting pipelines",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a JSON config file (optional, env vars override)")

	rootCmd.AddCommand(compileCmd(), runCmd(), cancelCmd(), statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)
	return cfg
}

// initAmbientStack wires the structured logger and the tracing provider
// from cfg before any compiler/executor call, so Op()/OpWithTrace() log at
// the configured level/format and StartSpan exports real spans instead of
// silently running against the no-op tracer. A tracing init failure is
// logged and otherwise ignored; the no-op tracer remains in place.
func initAmbientStack(ctx context.Context, cfg *config.Config) {
	logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Observability.Tracing.Enabled,
		Exporter:    cfg.Observability.Tracing.Exporter,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		ServiceName: cfg.Observability.Tracing.ServiceName,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "initializing tracing, continuing with tracing disabled: %v\n", err)
	}
}

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <pipeline-file>",
		Short: "Compile a pipeline description and print its IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			initAmbientStack(ctx, loadConfig())

			result := compiler.CompileTraced(ctx, string(text), registry.New())
			data, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(data))

			code := exitSuccess
			if !result.Success {
				code = exitCompileFail
			}
			observability.Shutdown(ctx)
			os.Exit(code)
			return nil
		},
	}
	return cmd
}

func runCmd() *cobra.Command {
	var datasetFlags []string

	cmd := &cobra.Command{
		Use:   "run <pipeline-id> <pipeline-file>",
		Short: "Compile and execute a pipeline to completion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipelineID := args[0]
			text, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			datasets := map[string]string{}
			for _, kv := range datasetFlags {
				for i := 0; i < len(kv); i++ {
					if kv[i] == '=' {
						datasets[kv[:i]] = kv[i+1:]
						break
					}
				}
			}

			cfg := loadConfig()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			initAmbientStack(ctx, cfg)
			exec := buildExecutor(cfg)

			result := exec.Execute(ctx, pipelineID, string(text), datasets)
			data, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(data))

			code := exitSuccess
			switch {
			case result.Cancelled:
				code = exitCancelled
			case !result.Success:
				code = exitRunFail
			}
			observability.Shutdown(context.Background())
			os.Exit(code)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&datasetFlags, "dataset", nil, "name=uri dataset binding, repeatable")
	return cmd
}

func cancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Request cancellation of an in-flight run via the cancellation bus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if cfg.Redis.Addr == "" {
				return fmt.Errorf("cancel requires redis.addr to be configured")
			}
			client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
			defer client.Close()
			bus := cancelbus.New(client, cfg.Redis.Channel)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := bus.Publish(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("cancellation published for run %s\n", args[0])
			return nil
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print in-process compiler/executor counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := metrics.ReadSnapshot()
			data, _ := json.MarshalIndent(snap, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
	return cmd
}

// buildExecutor wires an Executor from cfg, following the CLI's own
// default-host assembly: the in-memory registry (custom-node lookup is an
// external collaborator per the design notes), both sandbox runtimes, the
// built-in runner, and an optional Redis cancellation bus.
func buildExecutor(cfg *config.Config) *executor.Executor {
	reg := registry.New()
	bi := &builtin.Runner{CELEvalTimeout: cfg.CEL.EvalTimeout}

	hostA := sandbox.New(sandbox.Config{
		Name:             string(domain.RuntimeHostA),
		Executable:       cfg.HostA.Executable,
		MemoryLimitBytes: cfg.HostA.MemoryLimitBytes,
		WallClock:        cfg.HostA.WallClock,
		CPUCores:         cfg.HostA.CPUCores,
		BaseDir:          cfg.Executor.RunsDir,
	})
	hostB := sandbox.New(sandbox.Config{
		Name:             string(domain.RuntimeHostB),
		Executable:       cfg.HostB.Executable,
		MemoryLimitBytes: cfg.HostB.MemoryLimitBytes,
		WallClock:        cfg.HostB.WallClock,
		CPUCores:         cfg.HostB.CPUCores,
		BaseDir:          cfg.Executor.RunsDir,
	})

	custom := &dispatch.CustomRunner{Registry: reg, HostA: hostA, HostB: hostB, Builtin: bi}
	builtinAdapter := &dispatch.BuiltinAdapter{Runner: bi}

	disp := dispatch.New(custom, hostA, hostB, builtinAdapter)

	var bus *cancelbus.Bus
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		bus = cancelbus.New(client, cfg.Redis.Channel)
	}

	var runState runstate.Store = runstate.NewMemStore()
	if cfg.Postgres.DSN != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Postgres.DSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connecting to postgres, falling back to in-memory run state: %v\n", err)
		} else {
			pg := runstate.NewPgStore(pool)
			if err := pg.EnsureSchema(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "ensuring run_state schema, falling back to in-memory run state: %v\n", err)
			} else {
				runState = pg
			}
		}
	}

	exec := executor.New(executor.Config{
		Registry:   reg,
		Dispatcher: disp,
		RunState:   runState,
		Logs:       logging.NewRunLogStore(),
		RunsDir:    cfg.Executor.RunsDir,
		CancelBus:  bus,
	})

	if bus != nil {
		go exec.ListenForRemoteCancellations(context.Background())
	}

	return exec
}
