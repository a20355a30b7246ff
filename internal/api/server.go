package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/apartresearch/reward-analyzer/internal/tracking"
	"github.com/apartresearch/reward-analyzer/pkg/artifacts"
	"github.com/apartresearch/reward-analyzer/pkg/logger"
	"github.com/apartresearch/reward-analyzer/pkg/sweep"
)

const (
	defaultLogLimit = 100
	shutdownTimeout = 10 * time.Second
)

// Server is the HTTP API of a sweep.
type Server struct {
	echo    *echo.Echo
	grid    *sweep.Grid
	tracker *tracking.Service
	logs    *logger.Buffer
}

// New builds the server. The tracker, log buffer and gatherer are optional; their routes answer
// 404 when missing.
func New(
	grid *sweep.Grid, tracker *tracking.Service, logs *logger.Buffer, gatherer prometheus.Gatherer,
) *Server {
	s := &Server{echo: echo.New(), grid: grid, tracker: tracker, logs: logs}

	s.echo.Logger = logger.Echo()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = JSONErrorHandler
	s.echo.Use(middleware.Recover())

	v1 := s.echo.Group("/api/v1")
	v1.GET("/experiments", s.getExperiments)
	v1.GET("/experiments/:model/:variant", s.getExperiment)
	v1.GET("/artifacts/*", s.getArtifact)
	v1.GET("/versions", s.getVersions)
	v1.GET("/logs", s.getLogs)
	if gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves on port until ctx is done.
func (s *Server) Run(ctx context.Context, port int) error {
	errs := make(chan error, 1)
	go func() {
		log.Infof("serving api on port %d", port)
		errs <- s.echo.Start(fmt.Sprintf(":%d", port))
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) getExperiments(c echo.Context) error {
	return c.JSON(http.StatusOK, s.grid)
}

func (s *Server) getExperiment(c echo.Context) error {
	k := sweep.Key{Model: c.Param("model"), Variant: c.Param("variant")}
	e, ok := s.grid.Get(k)
	if !ok {
		return AsErrNotFound("experiment %s", k)
	}
	return c.JSON(http.StatusOK, e)
}

func (s *Server) getArtifact(c echo.Context) error {
	if s.tracker == nil {
		return AsErrNotFound("no tracking service")
	}
	raw, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return AsValidationError("artifact path: %s", err)
	}
	p, err := artifacts.ParseFullPath(raw)
	if err != nil {
		return AsValidationError("%s", err)
	}
	v, err := s.tracker.Artifact(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (s *Server) getVersions(c echo.Context) error {
	if s.tracker == nil {
		return AsErrNotFound("no tracking service")
	}
	project, name := c.QueryParam("project"), c.QueryParam("name")
	if project == "" || name == "" {
		return AsValidationError("project and name are required")
	}
	vs, err := s.tracker.Versions(c.Request().Context(), project, name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vs)
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, AsValidationError("%s must be an integer", name)
	}
	return n, nil
}

func (s *Server) getLogs(c echo.Context) error {
	if s.logs == nil {
		return AsErrNotFound("no log buffer")
	}
	after, err := intParam(c, "after", 0)
	if err != nil {
		return err
	}
	limit, err := intParam(c, "limit", defaultLogLimit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.logs.Since(after, limit))
}
