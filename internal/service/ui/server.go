// Package ui HTTP/WebSocket мост к интерфейсу клавиатуры: снимки состояния и
// управление сессией.
package ui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"BCISpeller/internal/config"
	"BCISpeller/internal/service/state"
)

// Controller то, что мост читает и переключает в машине состояний.
type Controller interface {
	Snapshot() state.Snapshot
	NotifyCh() <-chan struct{}
	StartSession(params state.Params)
	FinishSession()
	RequestShutdown()
}

const writeWait = 5 * time.Second

type Server struct {
	cfg      config.UIServerConfig
	ctl      Controller
	defaults state.Params
	srv      *http.Server
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
	running  atomic.Bool
	addr     atomic.Value // string, фактический адрес после Listen

	mu      sync.Mutex
	closed  bool
	clients map[*client]struct{}
	wg      sync.WaitGroup
	stop    context.CancelFunc
}

func NewServer(cfg config.UIServerConfig, ctl Controller, defaults state.Params, logger *zap.SugaredLogger) *Server {
	if cfg.BindAddr == "" {
		cfg.BindAddr = "127.0.0.1:8080"
	}
	if cfg.SnapshotRate <= 0 {
		cfg.SnapshotRate = 30
	}
	s := &Server{
		cfg:      cfg,
		ctl:      ctl,
		defaults: defaults,
		logger:   logger,
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			// Интерфейс открывается локально из файла или dev-сервера
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.addr.Store(cfg.BindAddr)

	s.srv = &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler маршруты моста.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /session/start", s.handleStart)
	mux.HandleFunc("POST /session/finish", s.handleFinish)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start слушает адрес и сразу возвращается. Останавливается по ctx или Stop.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.BindAddr)
	if err != nil {
		s.running.Store(false)
		return err
	}
	s.addr.Store(ln.Addr().String())

	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.closed = false
	s.stop = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pump(pumpCtx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Infow("UI server listening", "addr", s.Addr())
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) && err != nil {
			s.logger.Errorw("UI server stopped with error", "error", err)
		} else {
			s.logger.Infow("UI server stopped")
		}
	}()

	// Watch for context cancellation to stop the server
	stopped := pumpCtx.Done()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop(context.WithoutCancel(ctx))
		case <-stopped:
		}
	}()
	return nil
}

// Stop graceful shutdown: закрывает слушатель и все ws-соединения, ждёт их горутины.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeoutCause(ctx, 5*time.Second, errors.New("ui server shutdown timeout"))
	defer cancel()
	err := s.srv.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warnw("graceful shutdown error", "error", err)
		err = s.srv.Close()
	}

	s.mu.Lock()
	s.closed = true
	s.stop()
	for c := range s.clients {
		_ = c.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) Addr() string { return s.addr.Load().(string) }

// pump раздаёт уведомления машины состояний всем подключённым клиентам.
func (s *Server) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ctl.NotifyCh():
			s.mu.Lock()
			for c := range s.clients {
				c.poke()
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Snapshot())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	params, err := s.decodeParams(r.Body)
	if err != nil {
		http.Error(w, "invalid session params: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.ctl.StartSession(params)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinish(w http.ResponseWriter, _ *http.Request) {
	s.ctl.FinishSession()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.logger.Infow("Shutdown requested via UI", "remote", r.RemoteAddr)
	s.ctl.RequestShutdown()
	w.WriteHeader(http.StatusAccepted)
}

// decodeParams пустое тело — параметры по умолчанию.
func (s *Server) decodeParams(body io.Reader) (state.Params, error) {
	params := s.defaults
	data, err := io.ReadAll(io.LimitReader(body, 1<<16))
	if err != nil {
		return params, err
	}
	if len(data) == 0 {
		return params, nil
	}
	err = json.Unmarshal(data, &params)
	return params, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
