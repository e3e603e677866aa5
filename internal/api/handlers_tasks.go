package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/analytics"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/tasks"
	"github.com/gin-gonic/gin"
)

type createTaskRequest struct {
	Text     string `json:"text"`
	Priority int    `json:"priority"`
	Date     string `json:"date"`
}

// updateTaskRequest carries either field; a nil field is left unchanged.
type updateTaskRequest struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

type updateOrderRequest struct {
	Priorities map[string]int `json:"priorities" binding:"required"`
}

func (s *Server) listTasksHandler(c *gin.Context) {
	date, ok := parseDate(c, c.Query("date"))
	if !ok {
		return
	}

	list, err := s.tasks.ListByDate(c.Request.Context(), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createTaskHandler(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(c, tasks.ErrEmptyText)
		return
	}
	date, ok := parseDate(c, req.Date)
	if !ok {
		return
	}
	if req.Priority <= 0 {
		existing, err := s.tasks.ListByDate(c.Request.Context(), date)
		if err != nil {
			writeError(c, err)
			return
		}
		req.Priority = len(existing) + 1
	}

	task, err := s.tasks.Create(c.Request.Context(), text, req.Priority, date)
	if err != nil {
		writeError(c, err)
		return
	}
	s.tracker.Track(c.Request.Context(), analytics.TaskEvent(analytics.TaskCreated))
	c.JSON(http.StatusCreated, task)
}

func (s *Server) updateTaskHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	var (
		task *tasks.Task
		err  error
	)
	switch {
	case req.Completed != nil:
		task, err = s.tasks.SetCompleted(c.Request.Context(), id, *req.Completed)
		if err == nil {
			s.tracker.Track(c.Request.Context(), analytics.TaskEvent(analytics.TaskCheckedUnchecked))
		}
	case req.Text != nil:
		text := strings.TrimSpace(*req.Text)
		if text == "" {
			writeError(c, tasks.ErrEmptyText)
			return
		}
		task, err = s.tasks.EditText(c.Request.Context(), id, text)
		if err == nil {
			s.tracker.Track(c.Request.Context(), analytics.TaskEvent(analytics.TaskEdited))
		}
	default:
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", "nothing to update")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTaskHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.tasks.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	s.tracker.Track(c.Request.Context(), analytics.TaskEvent(analytics.TaskDeleted))
	c.Status(http.StatusNoContent)
}

func (s *Server) updateOrderHandler(c *gin.Context) {
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	priorities := make(map[int]int, len(req.Priorities))
	for key, priority := range req.Priorities {
		id, err := strconv.Atoi(key)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid_request_error", "invalid task id "+strconv.Quote(key))
			return
		}
		priorities[id] = priority
	}

	if err := s.tasks.UpdateOrder(c.Request.Context(), priorities); err != nil {
		writeError(c, err)
		return
	}
	s.tracker.Track(c.Request.Context(), analytics.TaskEvent(analytics.TaskDragged))
	c.Status(http.StatusNoContent)
}

// parseDate reads a YYYY-MM-DD date, defaulting to today.
func parseDate(c *gin.Context, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Now(), true
	}
	date, err := time.ParseInLocation(tasks.DateLayout, raw, time.Local)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func parseID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", "invalid task id")
		return 0, false
	}
	return id, true
}
