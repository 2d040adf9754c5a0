package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ByteMirror/hivemind/config"
	"github.com/ByteMirror/hivemind/events"
	"github.com/ByteMirror/hivemind/intervention"
	corelog "github.com/ByteMirror/hivemind/log"
	"github.com/ByteMirror/hivemind/pool"
	"github.com/ByteMirror/hivemind/worktree"
	"github.com/ByteMirror/hivemind/worktree/gitcmd"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "hivemind",
	Short: "Agent-execution substrate core: event bus, config, pool, interventions, worktrees",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCore(cmd.Context())
	},
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Print the effective config and where it came from",
	RunE: func(cmd *cobra.Command, args []string) error {
		currentDir, err := filepath.Abs(".")
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		cfg, sources, projectPath, err := config.Load(currentDir)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfgJSON, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Printf("Project: %s\n", projectPath)
		fmt.Printf("Sources: %v\n", sources)
		fmt.Printf("Config:\n%s\n", cfgJSON)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hivemind version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(versionCmd)
}

// runCore loads the effective config, wires the five core components
// together, and blocks until interrupted. There is no TUI, agent
// protocol, or RPC surface here by design — this binary only proves out
// the substrate the orchestrator embeds.
func runCore(ctx context.Context) error {
	corelog.Initialize(false)
	defer corelog.Close()

	currentDir, err := filepath.Abs(".")
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, sources, projectPath, err := config.Load(currentDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	corelog.InfoLog.Printf("loaded config for %s from %v", projectPath, sources)

	bus := events.NewBus(256)
	defer bus.Complete()

	procPool := pool.New(cfg.Pool.MaxConcurrent, cfg.Pool.QueueStrategy, bus)
	interventions := intervention.New(cfg.Intervention, bus, intervention.RealClock{})
	defer interventions.Shutdown()

	worktrees := worktree.New(cfg.Worktree, gitcmd.Exec{}, bus, worktree.RealClock{})
	if err := worktrees.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize worktree manager: %w", err)
	}

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	worktrees.StartAutoCleanup(cleanupCtx, time.Minute)

	corelog.InfoLog.Printf("core ready: pool=%s worktree_base=%s", procPool, cfg.Worktree.BaseDir)

	<-ctx.Done()
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
