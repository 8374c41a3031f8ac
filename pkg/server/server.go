// Package server exposes the planner as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/tripcal/pkg/export"
	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/order"
	"github.com/harrisonrobin/tripcal/pkg/planner"
	"github.com/harrisonrobin/tripcal/pkg/store"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	Echo    *echo.Echo
	planner *planner.Planner
	logger  *log.Logger

	// workbook renders GET /export.
	workbook func(w io.Writer, tasks []model.Task, trips []model.Trip, mode order.Mode, today model.Date) error
}

func New(p *planner.Planner, logger *log.Logger) *Server {
	s := &Server{
		Echo:     echo.New(),
		planner:  p,
		logger:   logger,
		workbook: export.Write,
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.RegisterMiddlewares()
	s.RegisterRoutes()
	return s
}

func (s *Server) RegisterMiddlewares() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
}

func (s *Server) RegisterRoutes() {
	s.Echo.GET("/days/:date", s.DayHandler)
	s.Echo.GET("/horizon", s.HorizonHandler)
	s.Echo.GET("/board/:category", s.BoardHandler)
	s.Echo.GET("/export", s.ExportHandler)

	tasks := s.Echo.Group("/tasks")
	tasks.POST("", s.CreateTaskHandler)
	tasks.PUT("/:id", s.UpdateTaskHandler)
	tasks.PATCH("/:id/toggle", s.ToggleHandler)
	tasks.DELETE("/:id", s.DeleteTaskHandler)

	trips := s.Echo.Group("/trips")
	trips.GET("", s.TripsHandler)
	trips.PUT("/:id", s.SaveTripHandler)
	trips.DELETE("/:id", s.DeleteTripHandler)
	trips.GET("/:id/timeline", s.TimelineHandler)
	trips.GET("/:id/memos", s.MemosHandler)
	trips.POST("/:id/import", s.ImportHandler)
	trips.PUT("/:id/outline", s.OutlineHandler)
	trips.POST("/:id/notes", s.AddNoteHandler)
	trips.DELETE("/:id/notes/:n", s.RemoveNoteHandler)
}

// Start serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Infof("listening on %s", addr)
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and writes any pending trip content.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	s.planner.FlushContent()
	return err
}

type errorResponse struct {
	Error string `json:"error"`
}

// fail maps planner errors onto status codes: rule violations are the
// caller's fault, unknown ids are 404 and anything else came from the store.
func fail(c echo.Context, err error) error {
	code := http.StatusBadGateway
	switch {
	case model.IsValidation(err):
		code = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, store.ErrExists):
		code = http.StatusConflict
	}
	return c.JSON(code, errorResponse{Error: err.Error()})
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// today reads ?today= and falls back to the planner's clock.
func (s *Server) today(c echo.Context) (model.Date, error) {
	raw := c.QueryParam("today")
	if raw == "" {
		return s.planner.Today(), nil
	}
	return model.ParseDate(raw)
}

func taskID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 30*time.Second)
}
