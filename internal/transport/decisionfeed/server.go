// Package decisionfeed streams engine decision events to local observer
// UIs over websocket. Loopback-only: the feed is a debugging surface, not
// a public API.
package decisionfeed

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"gearcraft.ai/internal/protocol"
)

// TickSource is the simulation's read-only tick counter.
type TickSource interface {
	Tick() uint64
}

type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	WorldID         string `json:"world_id"`
	Tick            uint64 `json:"tick"`
}

type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	// Agents filters the stream to these agent ids; empty means all.
	Agents []string `json:"agents,omitempty"`
	// Types filters the stream to these event types; empty means all.
	Types []string `json:"types,omitempty"`
}

type subscriber struct {
	out    chan []byte
	agents map[string]bool
	types  map[string]bool
}

func (s *subscriber) wants(ev protocol.DecisionEvent) bool {
	if len(s.agents) > 0 && !s.agents[ev.AgentID] {
		return false
	}
	if len(s.types) > 0 && !s.types[ev.Type] {
		return false
	}
	return true
}

type Server struct {
	worldID string
	ticks   TickSource
	log     *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	subs map[uint64]*subscriber
}

func NewServer(worldID string, ticks TickSource, logger *log.Logger) *Server {
	return &Server{
		worldID: worldID,
		ticks:   ticks,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only anyway
		},
		subs: map[uint64]*subscriber{},
	}
}

// Record implements the engine's event sink. Slow subscribers drop events
// rather than stalling the simulation.
func (s *Server) Record(ev protocol.DecisionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	for _, sub := range s.subs {
		if !sub.wants(ev) {
			continue
		}
		select {
		case sub.out <- b:
		default:
		}
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := BootstrapResponse{
			ProtocolVersion: protocol.Version,
			WorldID:         s.worldID,
			Tick:            s.ticks.Tick(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != protocol.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		id := s.nextID.Add(1)
		out := make(chan []byte, 4096)
		s.attach(id, &subscriber{out: out, agents: toSet(sub.Agents), types: toSet(sub.Types)})
		defer s.detach(id)
		s.log.Printf("[feed] subscriber %d connected from %s", id, r.RemoteAddr)
		defer s.log.Printf("[feed] subscriber %d disconnected", id)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for b := range out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		// Reader loop: allow filter updates, detect disconnect.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var upd SubscribeMsg
			if err := json.Unmarshal(msg, &upd); err != nil {
				continue
			}
			if upd.Type != "SUBSCRIBE" || upd.ProtocolVersion != protocol.Version {
				continue
			}
			s.attach(id, &subscriber{out: out, agents: toSet(upd.Agents), types: toSet(upd.Types)})
		}

		s.detach(id)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) attach(id uint64, sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.subs[id]; ok {
		// Filter update keeps the existing channel.
		sub.out = old.out
	}
	s.subs[id] = sub
}

func (s *Server) detach(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(sub.out)
	}
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
