package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/tasktracker/internal/metrics"
)

// Relay forwards a snapshot to other server instances.
type Relay interface {
	Publish(ctx context.Context, event string, payload json.RawMessage) error
}

// Hook runs after a snapshot has been handed to local subscribers.
type Hook func(ctx context.Context, event string)

// Broadcaster pushes full snapshots to every connected subscriber.
//
// The snapshot is serialized exactly once per Notify, so every subscriber
// of one notification receives identical bytes.  Delivery is best-effort:
// a full subscriber queue drops that frame, and relay failures are logged
// but never surface to the caller.
//
// Relay publishes go through a single worker.  Only the newest pending
// snapshot per event is kept, so remote instances always end on the latest
// state.
type Broadcaster struct {
	hub   *Hub
	log   *slog.Logger
	relay Relay
	hooks []Hook
	now   func() time.Time

	relayTimeout time.Duration

	relayMu      sync.Mutex
	relayPending map[string]json.RawMessage
	relayOrder   []string
	relayClosed  bool
	relayWake    chan struct{}
	relayDone    chan struct{}
}

type relayMsg struct {
	event   string
	payload json.RawMessage
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithRelay publishes every local notification through r.
func WithRelay(r Relay) Option { return func(b *Broadcaster) { b.relay = r } }

// WithHook registers a hook that runs on every local notification.
func WithHook(h Hook) Option {
	return func(b *Broadcaster) {
		if h != nil {
			b.hooks = append(b.hooks, h)
		}
	}
}

// NewBroadcaster constructs a Broadcaster over hub.
func NewBroadcaster(hub *Hub, log *slog.Logger, opts ...Option) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	b := &Broadcaster{
		hub:          hub,
		log:          log,
		now:          time.Now,
		relayTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(b)
	}
	if b.relay != nil {
		b.relayPending = make(map[string]json.RawMessage)
		b.relayWake = make(chan struct{}, 1)
		b.relayDone = make(chan struct{})
		go b.runRelay()
	}
	return b
}

// Close stops the relay worker after flushing pending snapshots.  It is
// safe to call more than once; later notifications are delivered locally
// only.
func (b *Broadcaster) Close() {
	if b.relay == nil {
		return
	}
	b.relayMu.Lock()
	if !b.relayClosed {
		b.relayClosed = true
		close(b.relayWake)
	}
	b.relayMu.Unlock()
	<-b.relayDone
}

// Notify serializes snapshot and delivers it under event to every current
// subscriber.  The returned error only reports a snapshot that could not be
// encoded; delivery problems are absorbed.
func (b *Broadcaster) Notify(ctx context.Context, event string, snapshot any) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", event, err)
	}

	b.deliver(event, payload, "local")

	for _, h := range b.hooks {
		h(ctx, event)
	}

	if b.relay != nil {
		b.enqueueRelay(event, payload)
	}
	return nil
}

func (b *Broadcaster) enqueueRelay(event string, payload json.RawMessage) {
	b.relayMu.Lock()
	defer b.relayMu.Unlock()
	if b.relayClosed {
		return
	}
	if _, ok := b.relayPending[event]; ok {
		b.log.Debug("broadcast.relay.coalesced", "event", event)
	} else {
		b.relayOrder = append(b.relayOrder, event)
	}
	b.relayPending[event] = payload
	select {
	case b.relayWake <- struct{}{}:
	default:
	}
}

func (b *Broadcaster) takeRelay() []relayMsg {
	b.relayMu.Lock()
	defer b.relayMu.Unlock()
	out := make([]relayMsg, 0, len(b.relayOrder))
	for _, ev := range b.relayOrder {
		out = append(out, relayMsg{ev, b.relayPending[ev]})
		delete(b.relayPending, ev)
	}
	b.relayOrder = b.relayOrder[:0]
	return out
}

func (b *Broadcaster) runRelay() {
	defer close(b.relayDone)
	flush := func() {
		for batch := b.takeRelay(); len(batch) > 0; batch = b.takeRelay() {
			for _, m := range batch {
				b.publish(m)
			}
		}
	}
	for range b.relayWake {
		flush()
	}
	flush()
}

// publish is detached from any request so a finished handler does not
// cancel it.
func (b *Broadcaster) publish(m relayMsg) {
	ctx, cancel := context.WithTimeout(context.Background(), b.relayTimeout)
	defer cancel()
	if err := b.relay.Publish(ctx, m.event, m.payload); err != nil {
		b.log.Warn("broadcast.relay.fail", "event", m.event, "err", err)
	}
}

// DeliverRemote hands a snapshot received from another instance to local
// subscribers.  It is not relayed again.
func (b *Broadcaster) DeliverRemote(event string, payload json.RawMessage) {
	b.deliver(event, payload, "relay")
}

func (b *Broadcaster) deliver(event string, payload json.RawMessage, source string) {
	frame, err := encodeFrame(event, payload, b.now())
	if err != nil {
		b.log.Error("broadcast.encode.fail", "event", event, "err", err)
		return
	}

	delivered, dropped := b.hub.Broadcast(frame)
	metrics.Broadcasts.WithLabelValues(event, source).Inc()
	if dropped > 0 {
		metrics.BroadcastDrops.WithLabelValues(event).Add(float64(dropped))
		b.log.Warn("broadcast.dropped", "event", event, "dropped", dropped, "delivered", delivered)
	}
	b.log.Debug("broadcast", "event", event, "source", source, "delivered", delivered, "bytes", len(payload))
}
