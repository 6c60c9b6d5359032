package devserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// APIPrefix is the path every SDK endpoint lives under.
const APIPrefix = "/connectx/api"

// Options configures NewRouter.
type Options struct {
	// Tokens maps a bearer token to its organization id.
	Tokens map[string]string
	Store  Store
	Logger zerolog.Logger
	// Registry receives the server metrics and backs /metrics. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry
}

// NewRouter wires the public, authenticated and inspection endpoints.
//
//	GET  /health, /ready, /metrics
//	GET  /connectx/api/webtracking/generateCookie
//	POST /connectx/api/webtracking
//	POST /connectx/api/webtracking/dropform
//	POST /connectx/api/webtracking/dropformOpenTicket
//	POST /connectx/api/object/:name/composite
//	GET  /connectx/api/dev/events, /dev/customers, /dev/customers/:id
func NewRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connectx_devserver_requests_total",
		Help: "Requests handled by the ConnectX dev server.",
	}, []string{"route", "method", "status"})
	reg.MustRegister(requests)

	h := &handlers{store: opts.Store, log: opts.Logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Logger, requests))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := opts.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := r.Group(APIPrefix)
	api.GET("/webtracking/generateCookie", h.generateCookie)

	authed := api.Group("/")
	authed.Use(BearerAuth(opts.Tokens))
	authed.POST("/webtracking", h.track)
	authed.POST("/webtracking/dropform", h.identify)
	authed.POST("/webtracking/dropformOpenTicket", h.openTicket)
	authed.POST("/object/:name/composite", h.createRecords)
	authed.GET("/dev/events", h.listEvents)
	authed.GET("/dev/customers", h.listCustomers)
	authed.GET("/dev/customers/:id", h.getCustomer)

	return r
}

// requestLogger logs each request and counts it by route and status.
func requestLogger(log zerolog.Logger, requests *prometheus.CounterVec) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()

		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("dev server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Msg("dev server shutting down")
	return srv.Shutdown(shutdownCtx)
}
