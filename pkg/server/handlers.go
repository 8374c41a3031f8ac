package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/harrisonrobin/tripcal/pkg/importer"
	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/order"
	"github.com/harrisonrobin/tripcal/pkg/workflow"
	"github.com/labstack/echo/v4"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type tripSummary struct {
	model.Trip
	Progress workflow.Progress `json:"progress"`
}

type timelineResponse struct {
	Trip     string            `json:"trip"`
	Mode     order.Mode        `json:"mode"`
	Active   int               `json:"active"`
	Steps    []workflow.Step   `json:"steps"`
	Progress workflow.Progress `json:"progress"`
}

type importRequest struct {
	Text string `json:"text"`
}

type importFailure struct {
	Error   string                 `json:"error"`
	Skipped []importer.SkippedLine `json:"skipped"`
}

type noteRequest struct {
	Note string `json:"note"`
}

// DayHandler handles GET /days/:date
func (s *Server) DayHandler(c echo.Context) error {
	d, err := model.ParseDate(c.Param("date"))
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(http.StatusOK, s.planner.Day(d))
}

// HorizonHandler handles GET /horizon
func (s *Server) HorizonHandler(c echo.Context) error {
	today, err := s.today(c)
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(http.StatusOK, s.planner.Horizon(today))
}

// BoardHandler handles GET /board/:category
func (s *Server) BoardHandler(c echo.Context) error {
	category, err := model.ParseCategory(c.Param("category"))
	if err != nil {
		return badRequest(c, err)
	}
	return c.JSON(http.StatusOK, s.planner.Board(category))
}

// ExportHandler handles GET /export
func (s *Server) ExportHandler(c echo.Context) error {
	today, err := s.today(c)
	if err != nil {
		return badRequest(c, err)
	}
	mode, err := order.ParseMode(c.QueryParam("mode"))
	if err != nil {
		return badRequest(c, err)
	}
	// Build the whole workbook first so a failure can still answer with JSON.
	var buf bytes.Buffer
	if err := s.workbook(&buf, s.planner.Tasks(), s.planner.Trips(), mode, today); err != nil {
		s.logger.Error("export failed", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="tripcal-%s.xlsx"`, today))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

// CreateTaskHandler handles POST /tasks
func (s *Server) CreateTaskHandler(c echo.Context) error {
	var draft model.Task
	if err := c.Bind(&draft); err != nil {
		return badRequest(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	task, err := s.planner.CreateTask(ctx, draft)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

// UpdateTaskHandler handles PUT /tasks/:id
func (s *Server) UpdateTaskHandler(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return badRequest(c, err)
	}
	var task model.Task
	if err := c.Bind(&task); err != nil {
		return badRequest(c, err)
	}
	task.ID = id
	ctx, cancel := requestContext(c)
	defer cancel()
	updated, err := s.planner.UpdateTask(ctx, task)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// ToggleHandler handles PATCH /tasks/:id/toggle
func (s *Server) ToggleHandler(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return badRequest(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	task, err := s.planner.ToggleDone(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

// DeleteTaskHandler handles DELETE /tasks/:id
func (s *Server) DeleteTaskHandler(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return badRequest(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := s.planner.DeleteTask(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// TripsHandler handles GET /trips
func (s *Server) TripsHandler(c echo.Context) error {
	trips := s.planner.Trips()
	out := make([]tripSummary, len(trips))
	for i, t := range trips {
		out[i] = tripSummary{Trip: t, Progress: s.planner.Progress(t.ID)}
	}
	return c.JSON(http.StatusOK, out)
}

// SaveTripHandler handles PUT /trips/:id
func (s *Server) SaveTripHandler(c echo.Context) error {
	var trip model.Trip
	if err := c.Bind(&trip); err != nil {
		return badRequest(c, err)
	}
	trip.ID = c.Param("id")
	ctx, cancel := requestContext(c)
	defer cancel()
	saved, err := s.planner.SaveTrip(ctx, trip)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

// DeleteTripHandler handles DELETE /trips/:id
func (s *Server) DeleteTripHandler(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := s.planner.DeleteTrip(ctx, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// TimelineHandler handles GET /trips/:id/timeline
func (s *Server) TimelineHandler(c echo.Context) error {
	mode, err := order.ParseMode(c.QueryParam("mode"))
	if err != nil {
		return badRequest(c, err)
	}
	today, err := s.today(c)
	if err != nil {
		return badRequest(c, err)
	}
	id := c.Param("id")
	steps, err := s.planner.Timeline(id, mode, today)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, timelineResponse{
		Trip:     id,
		Mode:     mode,
		Active:   workflow.Active(steps),
		Steps:    steps,
		Progress: s.planner.Progress(id),
	})
}

// MemosHandler handles GET /trips/:id/memos
func (s *Server) MemosHandler(c echo.Context) error {
	memos, err := s.planner.Memos(c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, memos)
}

// ImportHandler handles POST /trips/:id/import. The created tasks and the
// skipped lines are both returned.
func (s *Server) ImportHandler(c echo.Context) error {
	var req importRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	res, err := s.planner.Import(ctx, req.Text, c.Param("id"))
	if err != nil && res != nil && model.IsValidation(err) {
		return c.JSON(http.StatusBadRequest, importFailure{Error: err.Error(), Skipped: res.Skipped})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// OutlineHandler handles PUT /trips/:id/outline. The write is deferred to
// autosave, so it answers 202.
func (s *Server) OutlineHandler(c echo.Context) error {
	var outline []model.Block
	if err := c.Bind(&outline); err != nil {
		return badRequest(c, err)
	}
	if err := s.planner.EditOutline(c.Param("id"), outline); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// AddNoteHandler handles POST /trips/:id/notes
func (s *Server) AddNoteHandler(c echo.Context) error {
	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	if err := s.planner.AddMilestoneNote(c.Param("id"), req.Note); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// RemoveNoteHandler handles DELETE /trips/:id/notes/:n
func (s *Server) RemoveNoteHandler(c echo.Context) error {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return badRequest(c, err)
	}
	if err := s.planner.RemoveMilestoneNote(c.Param("id"), n); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}
