// Package control wires the monitor together and owns its lifecycle: one
// polling task per node, the maintenance loop and the status server.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"nodewarden/internal/core/config"
	"nodewarden/internal/core/domain"
	"nodewarden/internal/core/escalation"
	"nodewarden/internal/core/health"
	"nodewarden/internal/core/rotation"
	"nodewarden/internal/infra/alert"
	"nodewarden/internal/infra/lbagent"
	"nodewarden/internal/infra/logsink"
	"nodewarden/internal/infra/rpc"
	"nodewarden/internal/infra/storage"
	"nodewarden/internal/infra/storage/memory"
	"nodewarden/internal/infra/storage/postgres"
	"nodewarden/internal/metrics"
)

// maintenanceEvery is the delta-history cleanup cadence, in polling
// intervals. Healthy nodes accumulate no history, so this only sweeps
// leftovers from resolved incidents.
const maintenanceEvery = 10

// Monitor is the main application struct that manages the polling
// lifecycle for the whole fleet.
type Monitor struct {
	cfg       *config.AppConfig
	nodes     storage.NodeRepository
	checker   *health.Checker
	engine    *escalation.Engine
	counters  *escalation.Counters
	sink      logsink.Sink
	redisSink *logsink.RedisSink
	server    *Server
	db        *postgres.DB
	log       *slog.Logger
}

// New creates a Monitor with all dependencies initialized. An empty
// database URL selects the in-memory inventory, which is only useful for
// tests and dry runs.
func New(cfg *config.AppConfig) (*Monitor, error) {
	var (
		nodeRepo    storage.NodeRepository
		oracleRepo  storage.OracleRepository
		webhookRepo storage.WebhookRepository
		db          *postgres.DB
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(cfg.Monitor.MigrationsDir); err != nil {
			return nil, err
		}
		nodeRepo = postgres.NewNodeRepo(db)
		oracleRepo = postgres.NewOracleRepo(db)
		webhookRepo = postgres.NewWebhookRepo(db)
		slog.Info("Using PostgreSQL inventory")
	} else {
		store := memory.NewStore()
		nodeRepo = store
		oracleRepo = store
		webhookRepo = store
		slog.Info("Using in-memory inventory")
	}

	// Check records always land in the process log; redis is an optional
	// second sink for external collection.
	sinks := logsink.Tee{logsink.NewSlogSink()}
	var redisSink *logsink.RedisSink
	if cfg.Redis.URL != "" {
		var err error
		redisSink, err = logsink.NewRedisSink(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, stream sink disabled", "error", err)
		} else {
			sinks = append(sinks, redisSink)
		}
	}

	var dispatcher alert.Dispatcher = alert.NopDispatcher{}
	if cfg.Alert.DiscordDefaultWebhook != "" {
		var pd *alert.PagerDuty
		if cfg.Alert.PagerDutyRoutingKey != "" {
			pd = alert.NewPagerDuty(cfg.Alert.PagerDutyRoutingKey)
		}
		dispatcher = alert.NewDiscordDispatcher(webhookRepo, cfg.Alert.DiscordDefaultWebhook, pd)
	}

	var policy escalation.DispatchPolicy
	switch cfg.Monitor.DispatchPolicy {
	case "pnf":
		policy = escalation.PNFPolicy{Pager: dispatcher}
	default:
		policy = escalation.NopPolicy{}
	}

	agent := lbagent.NewHTTPClient(cfg.LoadBalancer.AgentPort, cfg.LoadBalancer.Timeout.Std())
	rotator := rotation.NewEngine(agent, cfg.LoadBalancer.Rotation)

	interval := cfg.Monitor.Interval.Std()
	rpcClient := rpc.NewClient(health.RPCTimeout(interval))
	checker := health.NewChecker(rpcClient, nodeRepo, oracleRepo, interval, cfg.Monitor.TriggerThreshold)

	counters := escalation.NewCounters()
	engine := escalation.NewEngine(
		escalation.Config{
			TriggerThreshold:   cfg.Monitor.TriggerThreshold,
			RetriggerThreshold: cfg.Monitor.RetriggerThreshold,
		},
		counters,
		nodeRepo,
		dispatcher,
		rotator,
		policy,
	)

	m := &Monitor{
		cfg:       cfg,
		nodes:     nodeRepo,
		checker:   checker,
		engine:    engine,
		counters:  counters,
		sink:      sinks,
		redisSink: redisSink,
		db:        db,
		log:       slog.Default().With("component", "control"),
	}
	m.server = NewServer(m, cfg.Server.Port)
	return m, nil
}

// Start discovers the fleet and launches one polling task per node plus
// the maintenance loop and the status server. It returns once everything
// is running; cancel ctx to begin shutdown.
func (m *Monitor) Start(ctx context.Context) error {
	nodes, err := m.nodes.FindMonitored(ctx)
	if err != nil {
		return fmt.Errorf("failed to load fleet: %w", err)
	}
	if len(nodes) == 0 {
		m.log.Warn("No nodes to monitor")
	}

	// Nodes persisted mid-incident should resolve, not re-trigger, when
	// they come back after a monitor restart.
	m.counters.SeedFromPersistedState(nodes, m.cfg.Monitor.TriggerThreshold)

	go func() {
		if err := m.server.Start(); err != nil {
			m.log.Error("Status server failed", "error", err)
		}
	}()

	for _, n := range nodes {
		m.log.Info("Starting node task", "node", n.Name, "chain", n.Chain.Name)
		go m.runNode(ctx, n)
	}
	go m.runMaintenance(ctx)

	return nil
}

// Stop shuts the monitor down. Node tasks stop via their context; this
// closes the external attachments.
func (m *Monitor) Stop(ctx context.Context) error {
	m.log.Info("Stopping monitor...")

	if m.redisSink != nil {
		if err := m.redisSink.Close(); err != nil {
			m.log.Warn("Failed to close Redis sink", "error", err)
		}
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			m.log.Warn("Failed to close database", "error", err)
		}
	}
	return m.server.Stop(ctx)
}

// runNode is the polling loop for one node. The first check runs
// immediately; afterwards ticks arrive at the configured interval.
func (m *Monitor) runNode(ctx context.Context, node domain.Node) {
	interval := m.cfg.Monitor.Interval.Std()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.tick(ctx, node.ID)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx, node.ID)
		}
	}
}

// tick runs one full check-classify-escalate cycle for one node. The node
// is re-read each tick so operator edits (muting, automation flags) and
// the persisted delta history are observed fresh.
func (m *Monitor) tick(ctx context.Context, nodeID string) {
	node, err := m.nodes.FindByID(ctx, nodeID)
	if err != nil {
		m.log.Error("failed to load node", "node", nodeID, "error", err)
		return
	}

	start := time.Now()
	result := m.checker.Check(ctx, node)
	observeCheck(node, result, time.Since(start))
	m.record(ctx, result)
	m.engine.Process(ctx, node, result)
}

// record ships the check result to the log sinks as one JSON record.
func (m *Monitor) record(ctx context.Context, result domain.HealthResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		m.log.Error("failed to encode check result", "node", result.Name, "error", err)
		return
	}
	level := logsink.LevelInfo
	if result.Status == domain.StatusError {
		level = logsink.LevelError
	}
	err = m.sink.Write(ctx, logsink.Entry{
		Name:    result.Name,
		Level:   level,
		Message: string(payload),
	})
	if err != nil {
		m.log.Warn("check record write failed", "node", result.Name, "error", err)
	}
}

// runMaintenance periodically clears the delta history of healthy nodes
// so a stale window never feeds a future recovery estimate.
func (m *Monitor) runMaintenance(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Monitor.Interval.Std() * maintenanceEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.nodes.ClearHealthyDeltas(ctx)
			if err != nil {
				m.log.Error("delta cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				m.log.Info("Cleared stale delta history", "nodes", n)
			}
		}
	}
}

// observeCheck updates the Prometheus collectors for one check outcome.
func observeCheck(node domain.Node, result domain.HealthResult, elapsed time.Duration) {
	metrics.ChecksTotal.WithLabelValues(node.Chain.Name, string(result.Conditions)).Inc()
	metrics.CheckDuration.WithLabelValues(node.Chain.Name).Observe(elapsed.Seconds())
	if result.Height > 0 {
		metrics.NodeHeight.WithLabelValues(node.Chain.Name, node.Name).Set(float64(result.Height))
		metrics.BlockDelta.WithLabelValues(node.Chain.Name, node.Name).Set(float64(result.Delta))
	}
}

// CheckNode runs a single one-shot check for the named node, without
// escalation or persistence. Used by the check subcommand.
func (m *Monitor) CheckNode(ctx context.Context, name string) (domain.HealthResult, error) {
	nodes, err := m.nodes.FindMonitored(ctx)
	if err != nil {
		return domain.HealthResult{}, fmt.Errorf("failed to load fleet: %w", err)
	}
	for _, n := range nodes {
		if n.Name == name {
			return m.checker.Check(ctx, n), nil
		}
	}
	return domain.HealthResult{}, fmt.Errorf("node %q not found", name)
}
