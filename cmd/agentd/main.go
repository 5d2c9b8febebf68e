package main

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagents/gagents/pkg/agents"
	"github.com/gagents/gagents/pkg/api"
	"github.com/gagents/gagents/pkg/client"
	"github.com/gagents/gagents/pkg/health"
	"github.com/gagents/gagents/pkg/log"
	"github.com/gagents/gagents/pkg/manager"
	"github.com/gagents/gagents/pkg/metrics"
	"github.com/gagents/gagents/pkg/reconciler"
	"github.com/gagents/gagents/pkg/runtime"
	"github.com/gagents/gagents/pkg/runtimeconfig"
	"github.com/gagents/gagents/pkg/security"
	"github.com/gagents/gagents/pkg/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "agentd",
	Short:   "GAgents - a hierarchical event-sourced agent runtime host",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"agentd version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(caCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

// builtinAgentKinds maps a CLI-facing kind name to the Constructor and
// handler wiring for it. Counter is the only built-in kind shipped with
// this binary; host applications embedding pkg/manager register their
// own kinds the same way.
var builtinAgentKinds = map[string]struct {
	construct manager.Constructor
	register  func(rt *runtime.AgentRuntime)
}{
	"counter": {construct: agents.NewCounter, register: agents.RegisterHandler},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an agent host process",
	Long: `serve starts an agent host: an ActorFactory wired to a storage
backend, the admin gRPC surface (pkg/api), a liveness/metrics HTTP
surface, a reconciliation loop over parent/child subscriptions, and a
Prometheus metrics collector.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("backend", "memory", "Event storage backend: memory, bolt, raft")
	serveCmd.Flags().String("data-dir", "./data", "Data directory for bolt/raft backends")
	serveCmd.Flags().String("node-id", "node-1", "Raft node id (raft backend only)")
	serveCmd.Flags().String("raft-bind-addr", "127.0.0.1:7000", "Raft transport bind address (raft backend only)")
	serveCmd.Flags().Bool("raft-bootstrap", true, "Bootstrap a new single-node Raft cluster (raft backend only)")
	serveCmd.Flags().String("admin-addr", "127.0.0.1:8443", "Admin gRPC (mTLS) listen address")
	serveCmd.Flags().String("health-addr", "127.0.0.1:8081", "HTTP health/ready/metrics listen address")
	serveCmd.Flags().String("ca-dir", "./data/ca", "Directory holding the root CA's persisted material")
	serveCmd.Flags().String("cluster-secret", "", "Secret the CA's root key is encrypted at rest under (required)")
	serveCmd.Flags().String("config", "", "YAML runtime config file (snapshot_interval, dedup_*, mailbox_capacity, ...); unset fields use the documented defaults")
	serveCmd.Flags().Duration("metrics-interval", 5*time.Second, "Mailbox/active-agent metrics scrape interval")
	serveCmd.Flags().Duration("reconcile-interval", 10*time.Second, "Subscription convergence sweep interval")
	serveCmd.Flags().StringSlice("spawn", nil, "kind=uuid pairs to spawn at startup, e.g. counter=00000000-0000-0000-0000-000000000001")
}

func runServe(cmd *cobra.Command, args []string) error {
	backend, _ := cmd.Flags().GetString("backend")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	nodeID, _ := cmd.Flags().GetString("node-id")
	raftBindAddr, _ := cmd.Flags().GetString("raft-bind-addr")
	raftBootstrap, _ := cmd.Flags().GetBool("raft-bootstrap")
	adminAddr, _ := cmd.Flags().GetString("admin-addr")
	healthAddr, _ := cmd.Flags().GetString("health-addr")
	caDir, _ := cmd.Flags().GetString("ca-dir")
	clusterSecret, _ := cmd.Flags().GetString("cluster-secret")
	if clusterSecret == "" {
		return fmt.Errorf("--cluster-secret is required")
	}
	if err := security.SetClusterEncryptionKey(security.DeriveKeyFromClusterID(clusterSecret)); err != nil {
		return fmt.Errorf("set cluster encryption key: %w", err)
	}
	metricsInterval, _ := cmd.Flags().GetDuration("metrics-interval")
	reconcileInterval, _ := cmd.Flags().GetDuration("reconcile-interval")
	spawnSpecs, _ := cmd.Flags().GetStringSlice("spawn")
	configPath, _ := cmd.Flags().GetString("config")

	runtimeCfg, err := runtimeconfig.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("load runtime config: %w", err)
	}

	repo, snaps, closeRepo, err := openBackend(backend, dataDir, storage.RaftConfig{
		NodeID: nodeID, BindAddr: raftBindAddr, DataDir: dataDir, Bootstrap: raftBootstrap,
	})
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}
	defer closeRepo()

	typeReg := runtime.NewTypeRegistry()
	agents.RegisterCounterType(typeReg)

	factory := manager.NewActorFactory(manager.Dependencies{
		Config:       runtimeCfg,
		Repository:   repo,
		Snapshots:    snaps,
		TypeRegistry: typeReg,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var checkers []health.Checker
	for _, spec := range spawnSpecs {
		rt, err := spawnFromSpec(ctx, factory, spec)
		if err != nil {
			return err
		}
		checkers = append(checkers,
			&health.MailboxChecker{Agent: rt, Capacity: 1000},
			&health.ReplayLagChecker{Agent: rt, MaxPending: 1000},
		)
	}

	ca := security.NewCertAuthority(caDir)
	if !ca.IsInitialized() {
		if err := ca.LoadFromDisk(); err != nil {
			log.Info("no persisted CA found, generating a new root certificate")
			if err := ca.Initialize(); err != nil {
				return fmt.Errorf("initialize CA: %w", err)
			}
			if err := ca.SaveToDisk(); err != nil {
				return fmt.Errorf("persist CA: %w", err)
			}
		}
	}
	host, _, err := net.SplitHostPort(adminAddr)
	if err != nil {
		host = adminAddr
	}
	serverCert, err := ca.IssueNodeCertificate(nodeID, "agent-host", []string{host}, nil)
	if err != nil {
		return fmt.Errorf("issue server certificate: %w", err)
	}

	adminServer, err := api.NewServer(factory, ca, serverCert)
	if err != nil {
		return fmt.Errorf("build admin server: %w", err)
	}
	go func() {
		if err := adminServer.Start(adminAddr); err != nil {
			log.Errorf("admin server stopped", err)
		}
	}()
	log.Info(fmt.Sprintf("admin gRPC listening on %s", adminAddr))

	healthServer := api.NewHealthServer(factory)
	go func() {
		if err := healthServer.Start(healthAddr); err != nil && err != http.ErrServerClosed {
			log.Errorf("health server stopped", err)
		}
	}()
	log.Info(fmt.Sprintf("health/ready/metrics listening on %s", healthAddr))

	collector := metrics.NewCollector(factory, metricsInterval)
	go collector.Start(ctx)
	defer collector.Stop()

	rec := reconciler.NewReconciler(factory.Subscriptions(), reconcileInterval)
	rec.Start()
	defer rec.Stop()

	monitor := health.NewMonitor(health.DefaultConfig(), checkers...)
	go monitor.Run(ctx)
	defer monitor.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	adminServer.Stop()
	return nil
}

func spawnFromSpec(ctx context.Context, factory *manager.ActorFactory, spec string) (*runtime.AgentRuntime, error) {
	kind, idStr, ok := splitKV(spec)
	if !ok {
		return nil, fmt.Errorf("invalid --spawn spec %q, expected kind=uuid", spec)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid agent id in spec %q: %w", spec, err)
	}
	kindDef, ok := builtinAgentKinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown agent kind %q", kind)
	}
	rt, err := factory.Spawn(ctx, id, kindDef.construct, kindDef.register)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", spec, err)
	}
	return rt, nil
}

func splitKV(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func openBackend(backend, dataDir string, raftCfg storage.RaftConfig) (storage.EventRepository, storage.SnapshotStore, func(), error) {
	switch backend {
	case "memory":
		repo := storage.NewMemoryEventRepository()
		return repo, repo, func() {}, nil
	case "bolt":
		repo, err := storage.NewBoltEventRepository(dataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return repo, repo, func() { _ = repo.Close() }, nil
	case "raft":
		repo, err := storage.NewRaftEventRepository(raftCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		return repo, repo, func() { _ = repo.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Inspect and drive remote agents via the admin API",
}

func init() {
	agentCmd.PersistentFlags().String("addr", "127.0.0.1:8443", "Agent host admin address")
	agentCmd.PersistentFlags().String("cert-dir", "", "Client certificate directory (defaults to the CLI cert dir)")

	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentStatusCmd)
	agentCmd.AddCommand(agentHealthCmd)
}

func dialClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	certDir, _ := cmd.Flags().GetString("cert-dir")
	if certDir == "" {
		d, err := security.GetCLICertDir()
		if err != nil {
			return nil, err
		}
		certDir = d
	}
	return client.NewClient(addr, certDir)
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active agents on a remote host",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		ids, err := c.ListActiveAgents()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var agentStatusCmd = &cobra.Command{
	Use:   "status <agent-id>",
	Short: "Print a remote agent's runtime status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		status, err := c.GetAgentStatus(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("agent:   %s\n", status.AgentID)
		fmt.Printf("active:  %v\n", status.Active)
		fmt.Printf("version: %d\n", status.Version)
		fmt.Printf("mailbox: %d\n", status.MailboxDepth)
		fmt.Printf("errors:  %d\n", status.ErrorCount)
		fmt.Printf("dropped: %d\n", status.DroppedCount)
		return nil
	},
}

var agentHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe a remote agent host's liveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		resp, err := c.Health()
		if err != nil {
			return err
		}
		fmt.Printf("status:        %s\n", resp.Status)
		fmt.Printf("active agents: %d\n", resp.ActiveAgents)
		return nil
	},
}

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Manage the agent host's root certificate authority",
}

func init() {
	caInitCmd.Flags().String("ca-dir", "./data/ca", "Directory to persist the root CA's material")
	caInitCmd.Flags().String("cluster-secret", "", "Secret the CA's root key is encrypted at rest under (required)")
	caCmd.AddCommand(caInitCmd)
}

var caInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate and persist a new root CA",
	RunE: func(cmd *cobra.Command, args []string) error {
		caDir, _ := cmd.Flags().GetString("ca-dir")
		clusterSecret, _ := cmd.Flags().GetString("cluster-secret")
		if clusterSecret == "" {
			return fmt.Errorf("--cluster-secret is required")
		}
		if err := security.SetClusterEncryptionKey(security.DeriveKeyFromClusterID(clusterSecret)); err != nil {
			return fmt.Errorf("set cluster encryption key: %w", err)
		}
		ca := security.NewCertAuthority(caDir)
		if ca.IsInitialized() {
			return fmt.Errorf("CA already initialized at %s", caDir)
		}
		if err := ca.Initialize(); err != nil {
			return fmt.Errorf("initialize CA: %w", err)
		}
		if err := ca.SaveToDisk(); err != nil {
			return fmt.Errorf("persist CA: %w", err)
		}
		rootDER := ca.GetRootCACert()
		cert, err := x509.ParseCertificate(rootDER)
		if err != nil {
			return err
		}
		fmt.Printf("root CA generated: %s (expires %s)\n", cert.Subject.CommonName, cert.NotAfter.Format(time.RFC3339))
		return nil
	},
}
