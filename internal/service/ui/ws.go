package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"BCISpeller/internal/service/state"
)

// Управляющие сообщения от интерфейса.
const (
	msgStartSession  = "start_session"
	msgFinishSession = "finish_session"
	msgShutdown      = "shutdown"
	msgSnapshot      = "snapshot"
)

type controlMessage struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

type snapshotMessage struct {
	Type  string         `json:"type"`
	State state.Snapshot `json:"state"`
}

type client struct {
	conn   *websocket.Conn
	notify chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// poke не блокирует: несколько изменений подряд сливаются в один снимок.
func (c *client) poke() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (s *Server) subscribe(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) unsubscribe(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	_ = c.conn.Close()
	s.wg.Done()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{conn: conn, notify: make(chan struct{}, 1), ctx: ctx, cancel: cancel}
	if !s.subscribe(c) {
		cancel()
		_ = conn.Close()
		return
	}
	defer s.unsubscribe(c)
	s.logger.Infow("UI client connected", "remote", r.RemoteAddr)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.readLoop(c)
	}()

	s.writeLoop(c)
	_ = conn.Close()
	<-readDone
	s.logger.Infow("UI client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) readLoop(c *client) {
	defer c.cancel()
	for {
		var msg controlMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debugw("WebSocket read stopped", "error", err)
			}
			return
		}
		s.control(msg)
	}
}

func (s *Server) control(msg controlMessage) {
	switch msg.Type {
	case msgStartSession:
		params := s.defaults
		if len(msg.Params) > 0 {
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				s.logger.Warnw("Invalid session params", "error", err, "raw", string(msg.Params))
				return
			}
		}
		s.ctl.StartSession(params)
	case msgFinishSession:
		s.ctl.FinishSession()
	case msgShutdown:
		s.logger.Infow("Shutdown requested via UI")
		s.ctl.RequestShutdown()
	default:
		s.logger.Warnw("Unknown control message", "type", msg.Type)
	}
}

// writeLoop шлёт снимок при подключении и после каждого изменения, не чаще SnapshotRate.
func (s *Server) writeLoop(c *client) {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.SnapshotRate), 1)
	c.poke()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.notify:
		}
		if err := limiter.Wait(c.ctx); err != nil {
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(snapshotMessage{Type: msgSnapshot, State: s.ctl.Snapshot()}); err != nil {
			s.logger.Debugw("WebSocket write failed", "error", err)
			return
		}
	}
}
