// Package main provides the EmberQL CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/emberql/emberql/pkg/cluster"
	"github.com/emberql/emberql/pkg/config"
	"github.com/emberql/emberql/pkg/lifecycle"
	"github.com/emberql/emberql/pkg/orchestrator"
	"github.com/emberql/emberql/pkg/placement"
	"github.com/emberql/emberql/pkg/query"
	"github.com/emberql/emberql/pkg/replication"
	"github.com/emberql/emberql/pkg/scheduler"
	"github.com/emberql/emberql/pkg/store"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// app bundles every subsystem a running node needs: the graph store, the
// query engine over it, cluster membership, the lifecycle and replication
// managers, the tier stores, and the orchestrator that sequences them
// through shutdown and startup.
type app struct {
	cfg   *config.Config
	store *store.Store
	query *query.Engine

	cluster     *cluster.Manager
	health      *cluster.HealthMonitor
	lifecycle   *lifecycle.Manager
	replication *replication.Manager
	orch        *orchestrator.Orchestrator
	rpc         *cluster.LoopbackRPC

	hot, warm placement.Store
	cold      *placement.ColdTier
}

func newApp(cfg *config.Config) (*app, error) {
	cold, err := placement.NewColdTier(cfg.Placement.ColdDataDir, cfg.Placement.ColdEncryptionPassword)
	if err != nil {
		return nil, fmt.Errorf("opening cold tier: %w", err)
	}

	cm := cluster.New(cfg.Cluster.NodeID, cfg.Cluster.BindAddress)
	for _, peer := range cfg.Cluster.SeedPeers {
		cm.Join(cluster.Member{ID: peer})
	}

	a := &app{
		cfg:         cfg,
		store:       store.New(),
		query:       query.NewEngine(),
		cluster:     cm,
		lifecycle:   lifecycle.NewManager(cm),
		replication: replication.NewManager(),
		hot:         placement.NewMemoryTier(),
		warm:        placement.NewMemoryTier(),
		cold:        cold,
	}
	// onFail fires once a peer's RPC failures cross HealthMonitor's
	// threshold and its recovery window lapses: drop it from the ring
	// and recompute placement and replica sets for whatever it held.
	a.health = cluster.NewHealthMonitor(a.cluster, func(peerID string) {
		a.cluster.Depart(peerID)
		a.lifecycle.HandlePeerDeparture(peerID)
		a.replication.HandlePeerFailure(peerID, 1)
	})
	a.orch = orchestrator.New(a.cluster, a.lifecycle, a.hot, a.warm, a.cold)

	a.rpc = cluster.NewLoopbackRPC()
	a.rpc.Register(a.cluster.Local(), "replication.apply", func(ctx context.Context, from string, payload any) (any, error) {
		update, ok := payload.(replicaUpdate)
		if !ok {
			return nil, fmt.Errorf("replication.apply: unexpected payload type %T", payload)
		}
		return nil, a.replication.ApplyFromPeer(update.Key, a.cluster.Local(), update.Replica)
	})
	a.rpc.Register(a.cluster.Local(), "health.ping", func(ctx context.Context, from string, payload any) (any, error) {
		return "pong", nil
	})

	return a, nil
}

// replicaUpdate is the payload shape sent over PeerRPC when propagating
// a write: the replica set key plus the writer's updated replica.
type replicaUpdate struct {
	Key     string
	Replica replication.Replica
}

// sendRPC wraps a.rpc.Send, feeding the outcome to the health monitor so
// CLUSTER HEALTH and ring membership reflect real peer reachability
// instead of just the static member list.
func (a *app) sendRPC(ctx context.Context, peer, method string, payload any) (any, error) {
	result, err := a.rpc.Send(ctx, peer, method, payload)
	if err != nil {
		a.health.ReportDown(peer)
		return nil, err
	}
	a.health.ReportUp(peer)
	return result, nil
}

func (a *app) Close() error {
	if a.cold != nil {
		return a.cold.Close()
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "emberql",
		Short: "EmberQL - embedded graph store with a Cypher-subset query engine",
		Long: `EmberQL is an embedded, in-memory graph store with property and label
indexes, a small Cypher-subset query language, read-only graph-analytics
kernels, and a distributed data-lifecycle layer that classifies, places,
and replicates data across a cluster of nodes.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("emberql v%s (%s)\n", version, commit)
		},
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new EmberQL data directory",
		RunE:  runInit,
	}
	initCmd.Flags().String("data-dir", "./data", "Cold-tier data directory")
	rootCmd.AddCommand(initCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start an EmberQL node",
		Long:  "Start an EmberQL node: runs startup orchestration, blocks, and runs shutdown orchestration on signal.",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "Optional YAML config file (EMBERQL_* environment variables still take precedence)")
	rootCmd.AddCommand(serveCmd)

	execCmd := &cobra.Command{
		Use:   "exec [statement]",
		Short: "Execute one statement against a fresh node and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExec,
	}
	rootCmd.AddCommand(execCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	fmt.Printf("Initializing EmberQL data directory in %s\n", dataDir)
	if err := os.MkdirAll(filepath.Join(dataDir, "cold"), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dataDir, err)
	}

	configPath := filepath.Join(dataDir, "emberql.yaml")
	configContent := fmt.Sprintf(`# EmberQL node configuration.
# Environment variables (EMBERQL_*) override anything set here.
cluster:
  node_id: ""
  bind_address: "0.0.0.0:7700"
  seed_peers: []
  partitions: 256
replication:
  default_policy: balanced
placement:
  cold_data_dir: %s
`, filepath.Join(dataDir, "cold"))
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Println("Data directory ready")
	fmt.Printf("  Config: %s\n", configPath)
	fmt.Println("Next: emberql serve --config " + configPath)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromEnvOrFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Memory.ApplyRuntimeMemory()

	fmt.Printf("Starting EmberQL v%s\n", version)
	fmt.Printf("  %s\n", cfg.String())

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	startupReport := a.orch.Startup(startupCtx, orchestrator.ModeStandard)
	cancel()
	if startupReport.Err != nil {
		return fmt.Errorf("startup: %w", startupReport.Err)
	}
	fmt.Println("Node ready")

	sched := scheduler.New(a.backgroundTasks(), func(task string, err error) {
		fmt.Printf("background task %s: %v\n", task, err)
	})
	sched.Start(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	sched.Stop()
	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	shutdownReport := a.orch.Shutdown(shutdownCtx, orchestrator.ModePlanned)
	if shutdownReport.Err != nil {
		return fmt.Errorf("shutdown: %w", shutdownReport.Err)
	}
	fmt.Println("Node stopped gracefully")
	return nil
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	statement := args[0]
	for _, extra := range args[1:] {
		statement += " " + extra
	}

	out, err := dispatch(a, statement)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
