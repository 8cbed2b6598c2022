package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopdesk/shopdesk-core/internal/activity"
	"github.com/shopdesk/shopdesk-core/internal/audit"
	"github.com/shopdesk/shopdesk-core/internal/auth"
	"github.com/shopdesk/shopdesk-core/internal/booking"
	"github.com/shopdesk/shopdesk-core/internal/customer"
	"github.com/shopdesk/shopdesk-core/internal/dashboard"
	"github.com/shopdesk/shopdesk-core/internal/document"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/config"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/database"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/influxdb"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/logging"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/mqtt"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/storage"
	"github.com/shopdesk/shopdesk-core/internal/message"
	"github.com/shopdesk/shopdesk-core/internal/settings"
)

// gracefulShutdownTimeout bounds the wait for in-flight requests on Close.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds everything the API server needs. UserRepo, TokenRepo, and
// Logger are mandatory; MQTT and Metrics are optional and their features
// degrade gracefully when absent.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Version  string

	UserRepo   auth.UserRepository
	TokenRepo  auth.TokenRepository
	Customers  customer.Repository
	Bookings   *booking.Service
	Documents  *document.Service
	Messages   *message.Service
	Activities activity.Repository
	Dashboard  *dashboard.Service
	Services   settings.ServiceRepository
	Settings   *settings.Store
	AuditRepo  audit.Repository

	DB      *database.DB    // health checks + pool stats
	Storage *storage.Client // health checks (document routes use it via Documents)
	MQTT    *mqtt.Client    // optional
	Metrics *influxdb.Client

	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
}

// Server is Shopdesk Core's HTTP front door: listener, routes, middleware,
// and the WebSocket hub. Create with New, start with Start, stop with Close.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	version     string
	startTime   time.Time
	userRepo    auth.UserRepository
	tokenRepo   auth.TokenRepository
	customers   customer.Repository
	bookings    *booking.Service
	documents   *document.Service
	messages    *message.Service
	activities  activity.Repository
	dashboard   *dashboard.Service
	services    settings.ServiceRepository
	settings    *settings.Store
	auditRepo   audit.Repository
	auditCh     chan *audit.AuditLog
	db          *database.DB
	storage     *storage.Client
	mqtt        *mqtt.Client
	metrics     *influxdb.Client
	limiter     *rateLimiter
	tickets     *ticketStore
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New validates deps and builds an unstarted server.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.UserRepo == nil || deps.TokenRepo == nil {
		return nil, fmt.Errorf("auth repositories are required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		version:    deps.Version,
		startTime:  time.Now(),
		userRepo:   deps.UserRepo,
		tokenRepo:  deps.TokenRepo,
		customers:  deps.Customers,
		bookings:   deps.Bookings,
		documents:  deps.Documents,
		messages:   deps.Messages,
		activities: deps.Activities,
		dashboard:  deps.Dashboard,
		services:   deps.Services,
		settings:   deps.Settings,
		auditRepo:  deps.AuditRepo,
		db:         deps.DB,
		storage:    deps.Storage,
		mqtt:       deps.MQTT,
		metrics:    deps.Metrics,
		tickets:    newTicketStore(),
	}

	if deps.AuditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	if s.secCfg.RateLimit.Enabled {
		rpm := s.secCfg.RateLimit.RequestsPerMinute
		if rpm <= 0 {
			rpm = 100 //nolint:mnd // default requests per minute
		}
		s.limiter = newRateLimiter(rpm, time.Minute)
	}

	// An injected hub lets domain services broadcast over the same
	// WebSocket connections the server owns.
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start launches the background loops and the HTTP listener, returning
// immediately. Stop with Close.
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close can stop background goroutines regardless
	// of what the parent context does.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}
	go s.tickets.cleanLoop(srvCtx)
	if s.limiter != nil {
		go s.limiter.cleanupLoop(srvCtx)
	}
	if s.auditCh != nil {
		go s.drainAuditLog(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadDuration(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadDuration(),
		WriteTimeout:      s.cfg.Timeouts.WriteDuration(),
		IdleTimeout:       s.cfg.Timeouts.IdleDuration(),
	}

	go s.listen()

	return nil
}

func (s *Server) listen() {
	var err error
	if s.cfg.TLS.Enabled {
		s.logger.Info("API server starting with TLS",
			"address", s.server.Addr,
			"cert", s.cfg.TLS.CertFile,
		)
		err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("API server error", "error", err)
	}
}

// Close stops the background loops and shuts the listener down, giving
// in-flight requests up to gracefulShutdownTimeout to finish.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
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
