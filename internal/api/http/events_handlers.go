package http

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/journal"
)

// query builds a journal query from ?limit, ?contextId and ?name (or ?kind)
func query(c *gin.Context) (journal.Query, error) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		return journal.Query{}, err
	}
	name := c.Query("name")
	if name == "" {
		name = c.Query("kind")
	}
	return journal.Query{
		Limit:     limit,
		ContextID: c.Query("contextId"),
		Name:      name,
	}, nil
}

// ListEvents returns the event log, most recent first
func (h *Handlers) ListEvents(c *gin.Context) {
	q, err := query(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	events := h.hub.Journal().Events(q)
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
		"stats":  h.hub.Journal().Stats(),
	})
}

// ListAlerts returns the alert log, most recent first
func (h *Handlers) ListAlerts(c *gin.Context) {
	q, err := query(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	alerts := h.hub.Journal().Alerts(q)
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ExportEvents streams the retained event log as gzipped NDJSON in
// chronological order
func (h *Handlers) ExportEvents(c *gin.Context) {
	q, err := query(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if c.Query("limit") == "" {
		q.Limit = 0
	}

	events := h.hub.Journal().Events(q)
	slices.Reverse(events)

	filename := fmt.Sprintf("events-%s.ndjson.gz", time.Now().UTC().Format("20060102T150405Z"))
	c.Header("Content-Type", "application/gzip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	gz := gzip.NewWriter(c.Writer)
	defer gz.Close()

	for _, rec := range events {
		line, err := sonic.Marshal(rec)
		if err != nil {
			h.logger.Warn("Skipping unencodable record", zap.String("event_id", rec.ID.String()), zap.Error(err))
			continue
		}
		if _, err := gz.Write(append(line, '\n')); err != nil {
			h.logger.Debug("Export aborted", zap.Error(err))
			return
		}
	}
}
