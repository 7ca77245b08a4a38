// Package client implements the node-side subscriber described in
// spec.md §4.5: subscribe to the master's updates filtered by node name,
// materialize each update into the local configuration file the worker
// watches. Grounded on original_source/lib/client.py's Run.
package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/loykin/dpd/internal/bus"
	"github.com/loykin/dpd/internal/config"
	"github.com/loykin/dpd/internal/dpdproc"
)

// Client subscribes to one node's updates subject and rewrites the local
// configuration envelope's `procs` field on every update it receives.
type Client struct {
	nodeName   string
	configPath string
	conn       *bus.Conn
	log        *slog.Logger
}

// New builds a Client for nodeName (after %H expansion has already been
// applied by the caller, see ExpandNodeName) against an already-connected
// bus.
func New(nodeName, configPath string, conn *bus.Conn, log *slog.Logger) *Client {
	return &Client{nodeName: nodeName, configPath: configPath, conn: conn, log: log}
}

// ExpandNodeName expands the literal "%H" placeholder to the machine's
// hostname, per spec.md §6: "`%H` in `node_name` expands to the host's
// network node name." Grounded on
// original_source/lib/client.py's `if node_name == '%H': node_name = platform.node()`.
func ExpandNodeName(nodeName string) (string, error) {
	if nodeName != "%H" {
		return nodeName, nil
	}
	return os.Hostname()
}

// Run subscribes to the node's updates subject and, on every message,
// merges the new process list into the local configuration envelope and
// atomically rewrites it. Runs until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	updates, unsubscribe, err := c.conn.SubscribeUpdates(c.nodeName, 16)
	if err != nil {
		return err
	}
	defer func() { _ = unsubscribe() }()

	if c.log != nil {
		c.log.Info("subscribed", "node", c.nodeName)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if err := c.applyUpdate(upd.Payload); err != nil {
				if c.log != nil {
					c.log.Error("apply update failed", "err", err, "correlation_id", upd.CorrelationID)
				}
				continue
			}
			if c.log != nil {
				c.log.Info("applied update", "correlation_id", upd.CorrelationID)
			}
		}
	}
}

// applyUpdate parses payload as a []ProcessSpec, merges it into the local
// envelope's Procs field, and atomically rewrites the configuration file.
// Grounded on original_source/lib/client.py's
// `full_conf["procs"] = new_processes; utils_io.WriteFile(...)`.
func (c *Client) applyUpdate(payload []byte) error {
	var procs []dpdproc.ProcessSpec
	if err := json.Unmarshal(payload, &procs); err != nil {
		return err
	}

	env, err := config.Load(c.configPath)
	if err != nil {
		// No prior local file: start from an empty envelope rather than
		// failing the whole update, matching the recoverable-pidfile-read
		// posture of spec.md §7 applied to the local config document.
		env = config.Envelope{}
	}
	env.Procs = procs

	if c.log != nil {
		c.log.Info("writing local config", "path", c.configPath, "processes", len(procs))
	}
	return config.AtomicWrite(c.configPath, env)
}
