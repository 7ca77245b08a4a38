// Package master implements the configuration file watcher and per-node
// publisher described in spec.md §4.4. Grounded on
// original_source/lib/master.py's Run/PublishChanges/FileRefresher.
package master

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/loykin/dpd/internal/bus"
	"github.com/loykin/dpd/internal/config"
	"github.com/loykin/dpd/internal/metrics"
)

// SettleInterval is how long the master waits after connecting before its
// first publish, so a broker-less bus's subscribers have time to connect
// (spec.md §4.4). Grounded on original_source/lib/master.py's `sleep(2)`.
const SettleInterval = 2 * time.Second

// RefreshInterval is how often the master re-checks the configuration
// file's mtime, matching original_source's `ctime - last_read > 1.0` gate.
const RefreshInterval = 1 * time.Second

// Master watches a configuration file and fans its `nodes` map out over
// the bus, one message per node, whenever the file changes.
type Master struct {
	configPath string
	watcher    *config.FileWatcher
	conn       *bus.Conn
	log        *slog.Logger
}

// New builds a Master bound to configPath and an already-connected bus.
func New(configPath string, conn *bus.Conn, log *slog.Logger) *Master {
	return &Master{
		configPath: configPath,
		watcher:    config.NewFileWatcher(configPath),
		conn:       conn,
		log:        log,
	}
}

// Run settles, publishes the current configuration once, then loops
// draining stats and re-publishing on every configuration file change
// until ctx is cancelled. Grounded on
// original_source/lib/master.py's Run.
func (m *Master) Run(ctx context.Context) error {
	if m.log != nil {
		m.log.Info("settling before first publish", "interval", SettleInterval)
	}
	bus.Settle(SettleInterval)

	env, err := config.Load(m.configPath)
	if err != nil {
		return err
	}
	_, _ = m.watcher.Changed()
	if err := m.publishAll(env); err != nil {
		return err
	}

	stats, unsubscribe, err := m.conn.SubscribeStats(64)
	if err != nil {
		return err
	}
	defer func() { _ = unsubscribe() }()

	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-stats:
			if !ok {
				stats = nil
				continue
			}
			metrics.IncStatsReceived()
			if m.log != nil {
				m.log.Info("stats", "payload", string(st.Payload), "correlation_id", st.CorrelationID)
			}
		case <-ticker.C:
			changed, err := m.watcher.Changed()
			if err != nil {
				if m.log != nil {
					m.log.Debug("config stat failed", "err", err)
				}
				continue
			}
			if !changed {
				continue
			}
			env, err := config.Load(m.configPath)
			if err != nil {
				if m.log != nil {
					m.log.Warn("config reload failed", "err", err)
				}
				continue
			}
			if err := m.publishAll(env); err != nil {
				return err
			}
		}
	}
}

// publishAll sends one message per node in env.Nodes. Grounded on
// original_source/lib/master.py's PublishChanges.
func (m *Master) publishAll(env config.Envelope) error {
	for node, procs := range env.Nodes {
		payload, err := json.Marshal(procs)
		if err != nil {
			return err
		}
		id, err := m.conn.PublishUpdate(node, payload)
		if err != nil {
			return err
		}
		metrics.IncPublish(node)
		if m.log != nil {
			m.log.Info("published", "node", node, "processes", len(procs), "correlation_id", id)
		}
	}
	return nil
}
