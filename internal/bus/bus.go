// Package bus wraps the broker-less publish/subscribe fabric spec.md §4.4/
// §4.5/§6 describes: an updates channel (Master publishes, Client
// subscribes filtered by node name) and a stats channel (PublishStats
// pushes, Master pulls; none of the roles in this module calls
// PublishStats). Grounded on the original ZeroMQ PUB/SUB + PUSH/PULL
// sockets in original_source/lib/master.py and client.py; NATS core
// pub/sub was chosen as the Go-idiomatic replacement because, like ZeroMQ
// PUB/SUB, a NATS core subject drops messages published while nobody is
// subscribed — exactly the "tolerate late subscribers" semantic spec.md
// §2 calls for, without needing a broker with persistence to fake it.
package bus

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// StatsQueueGroup is the NATS queue group stats consumers join, so that if
// more than one master-side collector is ever run, each stats message is
// delivered to exactly one of them.
const StatsQueueGroup = "stats-collectors"

// correlationHeader carries a per-message uuid so a master/client/worker
// log line can be correlated across roles, the way zmux-server stamps
// request IDs with google/uuid. The wire payload itself is untouched —
// the id rides in the NATS message header, alongside spec.md §6's opaque
// body, not inside it.
const correlationHeader = "X-Correlation-Id"

func newCorrelationID() string { return uuid.NewString() }

// Conn is a thin handle around a *nats.Conn scoped to the subjects this
// daemon uses. It exists so callers depend on dpd's bus vocabulary
// (updates/stats subjects) rather than on raw NATS subject strings.
type Conn struct {
	nc *nats.Conn
}

// Connect dials url (a NATS server address, e.g. "nats://localhost:4222").
// Reconnection and backoff are handled by nats.go itself, which is the
// bus-level analogue of original_source's "endpoints auto-reconnect"
// policy in spec.md §7.
func Connect(url string, opts ...nats.Option) (*Conn, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("bus connect %s: %w", url, err)
	}
	return &Conn{nc: nc}, nil
}

// Close drains and closes the underlying connection.
func (c *Conn) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

// updatesSubject maps a node name onto the NATS subject carrying that
// node's manifest updates. Per-node subjects are the NATS-idiomatic
// translation of the original's single PUB socket plus
// zmq.SUBSCRIBE-prefix filtering (DESIGN.md Open Question resolution d).
func updatesSubject(node string) string {
	return "updates." + node
}

// PublishUpdate publishes payload (the serialized per-node process list)
// to node's updates subject, with the legacy "<node> <json>" text body
// preserved so the wire format in spec.md §6 is unchanged even though
// NATS, unlike the ZeroMQ socket, no longer needs a prefix to route it.
// It returns the correlation id stamped on the message header so the
// caller can log it alongside the publish.
func (c *Conn) PublishUpdate(node string, payload []byte) (string, error) {
	body := append([]byte(node+" "), payload...)
	id := newCorrelationID()
	msg := &nats.Msg{Subject: updatesSubject(node), Data: body, Header: nats.Header{correlationHeader: []string{id}}}
	return id, c.nc.PublishMsg(msg)
}

// Update is one message delivered on a node's updates subject.
type Update struct {
	Node          string
	Payload       []byte
	CorrelationID string
}

// SubscribeUpdates subscribes to node's updates subject and returns a
// channel of parsed Update values. The channel is closed when unsubscribe
// is called.
func (c *Conn) SubscribeUpdates(node string, bufSize int) (<-chan Update, func() error, error) {
	raw := make(chan *nats.Msg, bufSize)
	sub, err := c.nc.ChanSubscribe(updatesSubject(node), raw)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe updates for %s: %w", node, err)
	}

	out := make(chan Update, bufSize)
	go func() {
		defer close(out)
		for msg := range raw {
			n, payload, ok := splitNodePayload(msg.Data)
			if !ok {
				continue
			}
			out <- Update{Node: n, Payload: payload, CorrelationID: msg.Header.Get(correlationHeader)}
		}
	}()

	unsubscribe := func() error {
		err := sub.Unsubscribe()
		close(raw)
		return err
	}
	return out, unsubscribe, nil
}

// splitNodePayload splits the legacy "<node> <json>" wire body on the
// first space, mirroring original_source/lib/client.py's
// `config.split(" ", 1)`.
func splitNodePayload(data []byte) (node string, payload []byte, ok bool) {
	for i, b := range data {
		if b == ' ' {
			return string(data[:i]), data[i+1:], true
		}
	}
	return "", nil, false
}

// statsSubject is the single opaque stats channel spec.md §6 describes.
const statsSubject = "dpd.stats"

// PublishStats pushes an opaque stats payload toward the master. Payload
// contents are not interpreted by the core (spec.md §6: "opaque to the
// core, logged verbatim"); the returned correlation id is for the
// publisher's own log line, not for the stats body.
func (c *Conn) PublishStats(payload []byte) (string, error) {
	id := newCorrelationID()
	msg := &nats.Msg{Subject: statsSubject, Data: payload, Header: nats.Header{correlationHeader: []string{id}}}
	return id, c.nc.PublishMsg(msg)
}

// Stats is one message delivered on the stats subject.
type Stats struct {
	Payload       []byte
	CorrelationID string
}

// SubscribeStats joins the stats queue group and returns a channel of raw
// stats payloads.
func (c *Conn) SubscribeStats(bufSize int) (<-chan Stats, func() error, error) {
	raw := make(chan *nats.Msg, bufSize)
	sub, err := c.nc.ChanQueueSubscribe(statsSubject, StatsQueueGroup, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe stats: %w", err)
	}
	out := make(chan Stats, bufSize)
	go func() {
		defer close(out)
		for msg := range raw {
			out <- Stats{Payload: msg.Data, CorrelationID: msg.Header.Get(correlationHeader)}
		}
	}()
	unsubscribe := func() error {
		err := sub.Unsubscribe()
		close(raw)
		return err
	}
	return out, unsubscribe, nil
}

// Settle sleeps d to let subscribers connect before the first publish, the
// broker-less-bus accommodation spec.md §4.4 calls for ("sleeps a brief
// settle interval (~2s)"). Grounded on
// original_source/lib/master.py's `sleep(2)` in Run.
func Settle(d time.Duration) { time.Sleep(d) }
