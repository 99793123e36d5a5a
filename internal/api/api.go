// Package api exposes the planner and reminder scheduler over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"taskmate/internal/logging"
	"taskmate/internal/planner"
	"taskmate/internal/recurrence"
	"taskmate/internal/reminder"
	"taskmate/internal/storage"
	"taskmate/internal/task"
)

// Engine is the scheduler surface the API uses.
type Engine interface {
	Reminders() []reminder.Reminder
	CheckReminders()
	Permission() reminder.Permission
	RequestPermission(ctx context.Context) bool
	RevokePermission(ctx context.Context) error
}

type Handler struct {
	planner       *planner.Service
	engine        Engine
	logger        *log.Logger
	upcomingHours int
}

func NewHandler(p *planner.Service, engine Engine, logger *log.Logger, upcomingHours int) *Handler {
	if upcomingHours <= 0 {
		upcomingHours = 24
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{planner: p, engine: engine, logger: logger, upcomingHours: upcomingHours}
}

// NewRouter builds a gin engine with CORS for the given browser origins.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())
	if len(allowedOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = allowedOrigins
		r.Use(cors.New(cfg))
	}
	h.Register(r)
	return r
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/tasks", h.listTasks)
		v1.POST("/tasks", h.createTask)
		v1.GET("/tasks/upcoming", h.upcoming)
		v1.POST("/tasks/clear-completed", h.clearCompleted)
		v1.PUT("/tasks/:id", h.updateTask)
		v1.DELETE("/tasks/:id", h.deleteTask)
		v1.POST("/tasks/:id/toggle", h.toggleTask)

		v1.GET("/reminders", h.listReminders)
		v1.POST("/reminders/check", h.checkReminders)

		v1.GET("/notifications/permission", h.getPermission)
		v1.POST("/notifications/permission", h.requestPermission)
		v1.DELETE("/notifications/permission", h.revokePermission)
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start))
	}
}

type listResponse struct {
	Tasks []task.Task `json:"tasks"`
	Stats task.Stats  `json:"stats"`
}

func (h *Handler) listTasks(c *gin.Context) {
	f, err := task.ParseFilter(c.Query("filter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := task.ParseSort(c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tasks, err := h.planner.Tasks(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse{Tasks: task.Apply(tasks, f, s), Stats: task.Summarize(tasks)})
}

func (h *Handler) createTask(c *gin.Context) {
	var req task.Task
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ID = ""
	created, err := h.planner.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateTask(c *gin.Context) {
	var req task.Task
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cur, err := h.planner.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	req.ID = cur.ID
	req.SeriesID = cur.SeriesID
	req.CreatedAt = cur.CreatedAt
	updated, err := h.planner.Update(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteTask(c *gin.Context) {
	if err := h.planner.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) toggleTask(c *gin.Context) {
	res, err := h.planner.Toggle(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) clearCompleted(c *gin.Context) {
	n, err := h.planner.ClearCompleted(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

func (h *Handler) upcoming(c *gin.Context) {
	within := h.upcomingHours
	if v := c.Query("within"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "within must be a non-negative number of hours"})
			return
		}
		within = n
	}
	tasks, err := h.planner.Upcoming(c.Request.Context(), within)
	if err != nil {
		h.fail(c, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"within": within, "tasks": tasks})
}

func (h *Handler) listReminders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"reminders": h.engine.Reminders()})
}

func (h *Handler) checkReminders(c *gin.Context) {
	h.engine.CheckReminders()
	c.JSON(http.StatusOK, gin.H{"reminders": h.engine.Reminders()})
}

func (h *Handler) getPermission(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"permission": h.engine.Permission()})
}

type permissionRequest struct {
	// Accepted is the user's answer to the client-side explanation shown
	// before the platform dialog.
	Accepted bool `json:"accepted"`
}

func (h *Handler) requestPermission(c *gin.Context) {
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	granted := false
	if req.Accepted {
		granted = h.engine.RequestPermission(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{"granted": granted, "permission": h.engine.Permission()})
}

func (h *Handler) revokePermission(c *gin.Context) {
	if err := h.engine.RevokePermission(c.Request.Context()); err != nil {
		if errors.Is(err, reminder.ErrRevokeUnsupported) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"permission": h.engine.Permission()})
}

func (h *Handler) fail(c *gin.Context, err error) {
	var invalid *recurrence.InvalidRecurrenceError
	var perr *storage.PersistenceError
	switch {
	case errors.Is(err, planner.ErrTaskNotFound), errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrEmptyTitle), errors.Is(err, task.ErrInvalidPriority), errors.Is(err, task.ErrInvalidReminder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &perr):
		h.logger.Error("storage failure", "op", perr.Op, "err", perr.Err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
