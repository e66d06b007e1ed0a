// Package httpapi exposes the attendance store and its reports over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"attentrack/internal/attendance"
	"attentrack/internal/report"
)

// Store is the persistence surface the handlers need.
type Store interface {
	Init(ctx context.Context) attendance.State
	RelationalHealthy(ctx context.Context) bool
	ListStudents(ctx context.Context) ([]attendance.Student, error)
	AddStudent(ctx context.Context, name, rollNumber string) (attendance.Student, error)
	UpdateStudent(ctx context.Context, st attendance.Student) (attendance.Student, error)
	DeleteStudent(ctx context.Context, id int64) (bool, error)
	ListRecords(ctx context.Context) ([]attendance.Record, error)
	SaveRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error)
	DeleteRecord(ctx context.Context, id string) (bool, error)
}

// Config configures a Handler.
type Config struct {
	Logger zerolog.Logger
	// Today defaults to time.Now.
	Today func() time.Time
}

// Handler serves the /v1 API.
type Handler struct {
	store Store
	log   zerolog.Logger
	today func() time.Time
}

// New creates a handler over store.
func New(store Store, cfg Config) *Handler {
	if cfg.Today == nil {
		cfg.Today = time.Now
	}
	return &Handler{store: store, log: cfg.Logger, today: cfg.Today}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	v1.GET("/students", h.listStudents)
	v1.POST("/students", h.addStudent)
	v1.PUT("/students/:id", h.updateStudent)
	v1.DELETE("/students/:id", h.deleteStudent)

	v1.GET("/attendance", h.listRecords)
	v1.POST("/attendance", h.createRecord)
	v1.PUT("/attendance/:id", h.replaceRecord)
	v1.DELETE("/attendance/:id", h.deleteRecord)

	reports := v1.Group("/reports")
	reports.GET("/summary", h.summary)
	reports.GET("/daily", h.daily)
	reports.GET("/students", h.studentRates)
	reports.GET("/classes", h.classes)
	reports.GET("/sessions", h.sessions)
	reports.GET("/week", h.week)
}

func (h *Handler) health(c *gin.Context) {
	ctx := c.Request.Context()
	state := h.store.Init(ctx)
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"state":      state.String(),
		"backend":    state.Backend(),
		"relational": h.store.RelationalHealthy(ctx),
	})
}

type studentRequest struct {
	Name       string `json:"name"`
	RollNumber string `json:"rollNumber"`
}

func bindStudent(c *gin.Context) (studentRequest, bool) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return req, false
	}
	req.Name = strings.TrimSpace(req.Name)
	req.RollNumber = strings.TrimSpace(req.RollNumber)
	return req, true
}

func (h *Handler) listStudents(c *gin.Context) {
	students, err := h.store.ListStudents(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) addStudent(c *gin.Context) {
	req, ok := bindStudent(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// The local backend has no unique constraint.
	students, err := h.store.ListStudents(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := attendance.CheckRollNumber(students, req.RollNumber, 0); err != nil {
		h.writeError(c, err)
		return
	}

	st, err := h.store.AddStudent(ctx, req.Name, req.RollNumber)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) updateStudent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid student id")
		return
	}
	req, ok := bindStudent(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	students, err := h.store.ListStudents(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !hasStudent(students, id) {
		h.writeError(c, fmt.Errorf("student %d: %w", id, errNotFound))
		return
	}
	if err := attendance.CheckRollNumber(students, req.RollNumber, id); err != nil {
		h.writeError(c, err)
		return
	}

	st, err := h.store.UpdateStudent(ctx, attendance.Student{ID: id, Name: req.Name, RollNumber: req.RollNumber})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func hasStudent(students []attendance.Student, id int64) bool {
	for _, st := range students {
		if st.ID == id {
			return true
		}
	}
	return false
}

func (h *Handler) deleteStudent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid student id")
		return
	}
	ok, err := h.store.DeleteStudent(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": ok})
}

func (h *Handler) listRecords(c *gin.Context) {
	records, err := h.store.ListRecords(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if r := c.Query("range"); r != "" {
		records = report.FilterByRange(records, report.ParseRange(r), h.today())
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) createRecord(c *gin.Context) {
	var rec attendance.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		badRequest(c, err.Error())
		return
	}
	if rec.ID == "" {
		rec.ID = attendance.NewRecordID()
	}
	if rec.Date == "" {
		rec.Date = h.today().Format(attendance.DateLayout)
	}
	h.saveRecord(c, rec, http.StatusCreated)
}

func (h *Handler) replaceRecord(c *gin.Context) {
	var rec attendance.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		badRequest(c, err.Error())
		return
	}
	rec.ID = c.Param("id")
	h.saveRecord(c, rec, http.StatusOK)
}

func (h *Handler) saveRecord(c *gin.Context, rec attendance.Record, status int) {
	saved, err := h.store.SaveRecord(c.Request.Context(), rec)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, saved)
}

func (h *Handler) deleteRecord(c *gin.Context) {
	ok, err := h.store.DeleteRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": ok})
}
