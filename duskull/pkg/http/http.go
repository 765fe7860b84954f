package http

import (
	"context"
	"errors"
	"fmt"
	"ichor/duskull/defs"
	"ichor/duskull/pkg/metrics"
	"ichor/duskull/pkg/mg"
	"ichor/duskull/pkg/plot"
	"ichor/duskull/pkg/reconcile"
	"ichor/duskull/pkg/yearday"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpStore interface {
	mg.SummaryStore
	mg.TotalsStore
	mg.FileStore
}

type HttpServer struct {
	Store         httpStore
	Metrics       *metrics.Manager
	Logger        *zap.Logger
	GlucoseConfig defs.GlucoseConfig

	router *gin.Engine
}

func New(s httpStore, gc defs.GlucoseConfig, m *metrics.Manager, logger *zap.Logger) *HttpServer {
	hs := &HttpServer{
		Store:         s,
		Metrics:       m,
		Logger:        logger,
		GlucoseConfig: gc,
	}
	hs.routes()
	return hs
}

func (s *HttpServer) Handler() http.Handler {
	return s.router
}

func (s *HttpServer) Run(addr string) error {
	s.Logger.Debug("serving snapshots", zap.String("addr", addr))
	return s.router.Run(addr)
}

func (s *HttpServer) routes() {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe)

	r.GET("/summaries", s.getSummaries)
	r.GET("/totals", s.getTotals)
	r.GET("/pairs", s.getPairs)
	r.GET("/plot/tir", s.getTIRPlot)
	r.GET("/plot/tdi", s.getTDIPlot)
	r.GET("/files/:id", s.getFile)
	if s.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}

	s.router = r
}

func (s *HttpServer) observe(c *gin.Context) {
	c.Next()
	s.Metrics.RecordHTTPRequest(c.FullPath(), c.Request.Method, c.Writer.Status())
}

// dayRange reads the optional start and end year-day keys of a request.
func dayRange(c *gin.Context) (string, string, error) {
	start, end := c.Query("start"), c.Query("end")
	for _, key := range []string{start, end} {
		if key == "" {
			continue
		}
		if _, err := yearday.Parse(key); err != nil {
			return "", "", err
		}
	}
	return start, end, nil
}

func (s *HttpServer) readDays(c *gin.Context) ([]defs.DailyGlucoseSummary, []defs.InsulinDailyTotal, bool) {
	start, end, err := dayRange(c)
	if err != nil {
		c.String(http.StatusBadRequest, "expected year-day keys for start and end: %v", err)
		return nil, nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), defs.TimeoutInterval)
	defer cancel()

	dss, err := s.Store.ReadSummaries(ctx, start, end)
	if err != nil {
		s.internalError(c, "unable to read summaries", err)
		return nil, nil, false
	}
	its, err := s.Store.ReadTotals(ctx, start, end)
	if err != nil {
		s.internalError(c, "unable to read totals", err)
		return nil, nil, false
	}
	return dss, its, true
}

func (s *HttpServer) internalError(c *gin.Context, msg string, err error) {
	s.Logger.Debug(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.String(http.StatusInternalServerError, "%s: %v", msg, err)
}

func (s *HttpServer) getSummaries(c *gin.Context) {
	start, end, err := dayRange(c)
	if err != nil {
		c.String(http.StatusBadRequest, "expected year-day keys for start and end: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), defs.TimeoutInterval)
	defer cancel()

	dss, err := s.Store.ReadSummaries(ctx, start, end)
	if err != nil {
		s.internalError(c, "unable to read summaries", err)
		return
	}

	c.JSON(http.StatusOK, dss)
}

func (s *HttpServer) getTotals(c *gin.Context) {
	start, end, err := dayRange(c)
	if err != nil {
		c.String(http.StatusBadRequest, "expected year-day keys for start and end: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), defs.TimeoutInterval)
	defer cancel()

	its, err := s.Store.ReadTotals(ctx, start, end)
	if err != nil {
		s.internalError(c, "unable to read totals", err)
		return
	}

	c.JSON(http.StatusOK, its)
}

func (s *HttpServer) getPairs(c *gin.Context) {
	dss, its, ok := s.readDays(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, reconcile.Pair(dss, its))
}

func (s *HttpServer) getTIRPlot(c *gin.Context) {
	dss, _, ok := s.readDays(c)
	if !ok {
		return
	}
	s.png(c, func() ([]byte, error) { return plot.DailyTIR(dss, s.GlucoseConfig) })
}

func (s *HttpServer) getTDIPlot(c *gin.Context) {
	dss, its, ok := s.readDays(c)
	if !ok {
		return
	}
	s.png(c, func() ([]byte, error) { return plot.TIRvsTDI(reconcile.Pair(dss, its)) })
}

func (s *HttpServer) png(c *gin.Context, render func() ([]byte, error)) {
	data, err := render()
	if errors.Is(err, plot.ErrNoData) {
		c.String(http.StatusNotFound, "no days in range")
		return
	}
	if err != nil {
		s.internalError(c, "unable to render plot", err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (s *HttpServer) getFile(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), defs.TimeoutInterval)
	defer cancel()

	r, err := s.Store.ReadFile(ctx, c.Param("id"))
	if err != nil {
		c.String(http.StatusNotFound, "unable to read file: %v", err)
		return
	}
	data, err := io.ReadAll(r)
	if err != nil {
		s.internalError(c, "unable to read file", fmt.Errorf("unable to read file contents: %w", err))
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}
