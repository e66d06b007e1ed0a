package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"attentrack/internal/attendance"
	"attentrack/internal/report"
)

const (
	defaultDays   = 7
	maxDays       = 90
	defaultLimit  = 10
	maxWeekOffset = 520
)

// rangedRecords loads the records inside the ?range window (week by default).
func (h *Handler) rangedRecords(c *gin.Context) ([]attendance.Record, bool) {
	records, err := h.store.ListRecords(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return report.FilterByRange(records, report.ParseRange(c.Query("range")), h.today()), true
}

func intQuery(c *gin.Context, key string, fallback, upper int) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > upper {
		badRequest(c, "invalid "+key)
		return 0, false
	}
	return n, true
}

func (h *Handler) summary(c *gin.Context) {
	records, ok := h.rangedRecords(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report.Summarize(records))
}

func (h *Handler) daily(c *gin.Context) {
	days, ok := intQuery(c, "days", defaultDays, maxDays)
	if !ok {
		return
	}
	records, err := h.store.ListRecords(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": report.Daily(records, h.today(), days)})
}

func (h *Handler) studentRates(c *gin.Context) {
	records, ok := h.rangedRecords(c)
	if !ok {
		return
	}
	students, err := h.store.ListStudents(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": report.ByStudent(students, records, c.Query("q"))})
}

func (h *Handler) classes(c *gin.Context) {
	records, ok := h.rangedRecords(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": report.ByClass(records)})
}

func (h *Handler) sessions(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultLimit, 1000)
	if !ok {
		return
	}
	records, ok := h.rangedRecords(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": report.RecentSessions(records, limit)})
}

// week serves the Monday to Sunday view; offset may be negative.
func (h *Handler) week(c *gin.Context) {
	offset := 0
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < -maxWeekOffset || n > maxWeekOffset {
			badRequest(c, "invalid offset")
			return
		}
		offset = n
	}
	records, err := h.store.ListRecords(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report.Week(records, h.today(), offset))
}
