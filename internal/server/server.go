package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"livechart/internal/live"
	"livechart/internal/push"
)

type Server struct {
	session *live.Session
	gateway *push.Gateway
	logger  *zap.Logger
	http    *http.Server
}

func New(listen string, session *live.Session, gateway *push.Gateway, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		session: session,
		gateway: gateway,
		logger:  logger,
	}
	s.http = &http.Server{
		Addr:              listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(s.logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	h := &handler{session: s.session, logger: s.logger}

	api := r.Group("/api")
	{
		api.GET("/instruments", h.instruments)
		api.GET("/resolutions", h.resolutions)

		api.POST("/live/select", h.selectSeries)
		api.POST("/live/deselect", h.deselect)
		api.POST("/live/refresh", h.refresh)
		api.GET("/live/series", h.series)
		api.GET("/live/annotations", h.annotations)
		api.POST("/live/start", h.start)
		api.POST("/live/stop", h.stop)
		api.GET("/live/status", h.status)

		api.GET("/logs", h.listLogs)
		api.GET("/logs/:source/:file", h.openLog)
		api.GET("/logs/:source/:file/summary", h.logSummary)

		api.GET("/series/export", h.exportSeries)
	}

	if s.gateway != nil {
		r.GET("/ws", func(c *gin.Context) {
			s.gateway.ServeHTTP(c.Writer, c.Request)
		})
	}

	return r
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting http server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.gateway != nil {
		s.gateway.Close()
	}
	return s.http.Shutdown(ctx)
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("http request", fields...)
			return
		}
		logger.Info("http request", fields...)
	}
}
