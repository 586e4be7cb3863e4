package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/solar-bridge/internal/accessory"
	"github.com/nerrad567/solar-bridge/internal/controller"
	"github.com/nerrad567/solar-bridge/internal/history"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/config"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/solar-bridge/internal/pairing"
)

const gracefulShutdownTimeout = 10 * time.Second

// Accessory is the part of the accessory tree the API reads and writes.
type Accessory interface {
	Snapshot() accessory.View
	Characteristic(id string) (*accessory.Characteristic, bool)
	RequestWrite(ctx context.Context, id string, raw any) error
	Identify()
	Subscribe(fn accessory.Listener) (unsubscribe func())
}

// StatsSource reports controller counters and the device serial number.
type StatsSource interface {
	Stats() controller.Stats
	SerialNumber() string
}

// PairingService manages paired controllers and the tokens they present.
type PairingService interface {
	State() string
	Paired() bool
	Pairings(ctx context.Context) ([]pairing.Pairing, error)
	Pair(ctx context.Context, setupCode string, p pairing.Pairing) error
	Unpair(ctx context.Context, controllerID string) error
	IssueToken(ctx context.Context, controllerID string) (string, error)
	Authenticate(ctx context.Context, raw string) (*pairing.Claims, error)
}

// HistoryReader returns recorded characteristic values, newest first.
type HistoryReader interface {
	GetHistory(ctx context.Context, characteristicID string, limit int) ([]history.Entry, error)
}

// MetricsExporter serves Prometheus metrics and tracks WebSocket clients.
type MetricsExporter interface {
	Handler() http.Handler
	SetWebSocketClients(n int)
}

// ConnectionChecker reports whether an optional backend is connected.
type ConnectionChecker interface {
	IsConnected() bool
}

// HealthChecker checks a required backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies of the API server. Accessory and Logger are
// required; a nil optional dependency disables the routes that need it.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Accessory Accessory
	Stats     StatsSource
	Pairing   PairingService
	History   HistoryReader
	Metrics   MetricsExporter
	Database  HealthChecker
	MQTT      ConnectionChecker
	InfluxDB  ConnectionChecker
	Audit     AuditTrail
	Version   string
}

// Server is the accessory's HTTP listener: a JSON read/write API over the
// characteristic tree, pairing management, WebSocket change push and the
// Prometheus endpoint.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	accessory  Accessory
	stats      StatsSource
	pairing    PairingService
	history    HistoryReader
	metrics    MetricsExporter
	db         HealthChecker
	mqtt       ConnectionChecker
	influx     ConnectionChecker
	auditTrail AuditTrail
	version    string
	startTime  time.Time

	hub         *Hub
	server      *http.Server
	listener    net.Listener
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// New creates an API server. Call Start to begin listening.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Accessory == nil {
		return nil, fmt.Errorf("accessory is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger.With("component", "api"),
		accessory:  deps.Accessory,
		stats:      deps.Stats,
		pairing:    deps.Pairing,
		history:    deps.History,
		metrics:    deps.Metrics,
		db:         deps.Database,
		mqtt:       deps.MQTT,
		influx:     deps.InfluxDB,
		auditTrail: deps.Audit,
		version:    deps.Version,
		startTime:  time.Now(),
	}
	s.hub = NewHub(deps.WS, s.logger)
	if deps.Metrics != nil {
		s.hub.OnClientCount(deps.Metrics.SetWebSocketClients)
	}
	return s, nil
}

// Start binds the listener, starts the WebSocket hub and relays accessory
// changes to it, then serves in the background. A bind failure is returned
// directly.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.startBackground(ctx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// startBackground runs the hub and the change relay until ctx ends or Close.
func (s *Server) startBackground(ctx context.Context) {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(srvCtx)
	}()
	s.unsubscribe = s.accessory.Subscribe(s.relayChange)
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops accepting requests and disconnects WebSocket clients.
func (s *Server) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
