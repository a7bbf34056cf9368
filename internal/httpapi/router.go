package httpapi

import (
	"context"
	"net/http"
	"time"

	"netinspect/internal/dashboard"
	"netinspect/internal/events"
	"netinspect/internal/logger"
	"netinspect/internal/service"
	"netinspect/pkg/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Backend 路由依赖的服务能力
type Backend interface {
	Activate(ctx context.Context) error
	Deactivate()
	Dismiss()
	State() service.State
	Transactions(ctx context.Context, q service.Query) ([]model.NetworkTransaction, error)
	Transaction(ctx context.Context, id string) (model.NetworkTransaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	ClearTransactions(ctx context.Context) error
	Dashboard(ctx context.Context, filter dashboard.SessionFilter) (dashboard.Snapshot, error)
	Preferences(ctx context.Context) ([]model.Preference, error)
	UpdatePreference(ctx context.Context, pref model.Preference, v model.Value) error
	Subscribe(buffer int) (events.SubscriberID, <-chan events.Event, error)
	Unsubscribe(id events.SubscriberID)
}

// Deps 路由依赖
type Deps struct {
	Svc      Backend
	Registry *prometheus.Registry
	Logger   logger.Logger
}

// NewRouter 构建检查器的本地 HTTP 接口
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
	h := &handlers{svc: d.Svc, log: d.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Post("/activate", h.activate)
		r.Post("/deactivate", h.deactivate)
		r.Post("/dismiss", h.dismiss)

		r.Get("/transactions", h.listTransactions)
		r.Delete("/transactions", h.clearTransactions)
		r.Get("/transactions/{id}", h.getTransaction)
		r.Delete("/transactions/{id}", h.deleteTransaction)

		r.Get("/dashboard", h.dashboard)
		r.Get("/preferences", h.listPreferences)
		r.Put("/preferences", h.updatePreference)

		r.Get("/live", newLive(d.Svc, d.Logger).ServeHTTP)
	})
	return r
}

// requestLogger 访问日志，websocket 连接在断开时记录
func requestLogger(l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.Debug("HTTP 请求",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(start).String(),
				"requestId", middleware.GetReqID(r.Context()),
			)
		})
	}
}
