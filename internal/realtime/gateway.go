package realtime

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/iliyamo/tasktracker/internal/config"
)

const (
	wsMaxPingFailures = 3
	wsCloseGrace      = 2 * time.Second
)

// Gateway upgrades HTTP requests to push channel sessions.  The channel is
// server-to-client only: the session joins the hub on connect, stays joined
// until the peer goes away, and any data frame sent by the peer closes it.
type Gateway struct {
	log *slog.Logger
	hub *Hub

	originPatterns   []string
	insecureOrigins  bool
	sendQueueSize    int
	writeTimeout     time.Duration
	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
}

// NewGateway builds a Gateway from the websocket section of the config.
func NewGateway(log *slog.Logger, hub *Hub, cfg config.WSConfig) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	g := &Gateway{
		log:              log,
		hub:              hub,
		sendQueueSize:    cfg.SendQueueSize,
		writeTimeout:     cfg.WriteTimeout,
		heartbeatEvery:   cfg.HeartbeatInterval,
		heartbeatTimeout: cfg.HeartbeatTimeout,
	}
	for _, o := range cfg.AllowedOrigins {
		if strings.TrimSpace(o) == "*" {
			g.insecureOrigins = true
		}
	}
	g.originPatterns = originPatterns(cfg.AllowedOrigins)

	if g.writeTimeout <= 0 {
		g.writeTimeout = 5 * time.Second
	}
	if g.heartbeatEvery <= 0 {
		g.heartbeatEvery = 25 * time.Second
	}
	if g.heartbeatTimeout <= 0 {
		g.heartbeatTimeout = 5 * time.Second
	}
	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.insecureOrigins,
	})
	if err != nil {
		g.log.Info("ws.accept.fail", "origin", r.Header.Get("Origin"), "err", err)
		return
	}

	sessionID := NewRandomHex(10)
	client := NewClient(sessionID, g.sendQueueSize)

	// CloseRead keeps a reader running for control frames (pong, close)
	// and cancels ctx once the peer disconnects.
	ctx := conn.CloseRead(r.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.hub.Leave(sessionID)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	g.hub.Join(client)
	g.log.Info("ws.connected", "session_id", sessionID, "remote", r.RemoteAddr)

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

writeLoop:
	for {
		select {
		case <-ctx.Done():
			break writeLoop
		case <-client.Done():
			break writeLoop
		case frame := <-client.Send:
			if err := g.write(ctx, conn, frame); err != nil {
				g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
				shutdown(websocket.StatusAbnormalClosure, "write failed")
				break writeLoop
			}
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
	g.log.Info("ws.disconnected", "session_id", sessionID)
}

func (g *Gateway) write(parent context.Context, conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(parent, g.writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

// originPatterns turns an origin allowlist into websocket.Accept host
// patterns.  Both host and host:port forms are emitted because Accept
// matches against the full Origin host.
func originPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed)*2)
	out := make([]string, 0, len(allowed)*2)
	add := func(p string) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || p == "*" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "" || a == "*" {
			continue
		}
		hostport := a
		if strings.Contains(a, "://") {
			u, err := url.Parse(a)
			if err != nil || u.Host == "" {
				continue
			}
			hostport = u.Host
		}
		add(hostport)
		if host, _, err := net.SplitHostPort(hostport); err == nil {
			add(host)
		}
	}
	return out
}
