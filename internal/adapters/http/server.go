package httpadapter

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/metrics"
	"exposurewatch/internal/ports"
	"exposurewatch/internal/remediation"
	"exposurewatch/internal/services/dashboard"
	"exposurewatch/internal/services/reconcile"
)

// Reconciler is the sync surface the API exposes.
type Reconciler interface {
	SyncSubscriber(ctx context.Context, subscriberID int64) ([]reconcile.Result, error)
	RefreshLatest(ctx context.Context, subscriberID int64) (reconcile.Progress, error)
	Enroll(ctx context.Context, subscriberID int64, country string, profile domain.ScanProfile) (domain.Scan, error)
}

// Dashboards builds the read views.
type Dashboards interface {
	Dashboard(ctx context.Context, req dashboard.Request) (dashboard.View, error)
	NextStep(ctx context.Context, subscriberID int64, country string) (remediation.Step, error)
}

type Options struct {
	Reconciler  Reconciler
	Dashboards  Dashboards
	Resolutions ports.ResolutionStore
	Jobs        ports.JobRepository
	Subscribers ports.SubscriberRepository
	JobMetrics  metrics.JobMetrics
	// Health reports store reachability for /healthz. Optional.
	Health func(ctx context.Context) error
	// Metrics serves /metrics. Optional.
	Metrics http.Handler
	Logger  zerolog.Logger

	WebhookSecret  string
	DefaultCountry string
	// SyncOnDashboard refreshes provider state before building a dashboard.
	SyncOnDashboard bool
	Now             func() time.Time
}

// Server implements ServerInterface.
type Server struct {
	reconciler  Reconciler
	dashboards  Dashboards
	resolutions ports.ResolutionStore
	jobs        ports.JobRepository
	subscribers ports.SubscriberRepository
	jobMetrics  metrics.JobMetrics
	health      func(ctx context.Context) error
	metrics     http.Handler
	log         zerolog.Logger

	webhookSecret   string
	defaultCountry  string
	syncOnDashboard bool
	now             func() time.Time
}

var _ ServerInterface = (*Server)(nil)

func New(opts Options) *Server {
	s := &Server{
		reconciler:      opts.Reconciler,
		dashboards:      opts.Dashboards,
		resolutions:     opts.Resolutions,
		jobs:            opts.Jobs,
		subscribers:     opts.Subscribers,
		jobMetrics:      opts.JobMetrics,
		health:          opts.Health,
		metrics:         opts.Metrics,
		log:             opts.Logger.With().Str("component", "http").Logger(),
		webhookSecret:   opts.WebhookSecret,
		defaultCountry:  opts.DefaultCountry,
		syncOnDashboard: opts.SyncOnDashboard,
		now:             opts.Now,
	}
	if s.jobMetrics == nil {
		s.jobMetrics = metrics.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.defaultCountry == "" {
		s.defaultCountry = remediation.FreeScanCountry
	}
	return s
}

// Routes returns a chi.Router with every handler mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	HandlerFromMux(s, r)
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// country picks the request's country: query parameter, then the client
// region header, then the configured default.
func (s *Server) country(r *http.Request, param *string) string {
	if param != nil && *param != "" {
		return *param
	}
	if h := r.Header.Get("X-Client-Region"); h != "" {
		return h
	}
	return s.defaultCountry
}
