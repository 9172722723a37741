package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/protocol"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/fixtures"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/inspect"
)

type fixtureRequest struct {
	Fixture string `json:"fixture"`
}

type commandRequest struct {
	Command string         `json:"command"`
	Args    map[string]any `json:"args"`
	Await   bool           `json:"await"`
}

// tabSummary omits rendered content from list views
type tabSummary struct {
	ID         string `json:"id"`
	FixtureKey string `json:"fixtureKey"`
	Title      string `json:"title"`
	Loads      int    `json:"loads"`
	Active     bool   `json:"active"`
}

// ListTabs lists contexts in creation order with the active id
func (h *Handlers) ListTabs(c *gin.Context) {
	snap := h.tabs.Snapshot()

	out := make([]tabSummary, 0, len(snap.Tabs))
	for _, t := range snap.Tabs {
		out = append(out, tabSummary{
			ID:         t.ID,
			FixtureKey: t.FixtureKey,
			Title:      t.Title,
			Loads:      t.Loads,
			Active:     t.ID == snap.ActiveID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"tabs":     out,
		"activeId": snap.ActiveID,
	})
}

// GetTab returns one context including its rendered content
func (h *Handlers) GetTab(c *gin.Context) {
	tabID := c.Param("id")
	if err := validateTabID(tabID); err != nil {
		h.fail(c, err)
		return
	}

	tab, ok := h.tabs.Get(tabID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
		return
	}
	c.JSON(http.StatusOK, tab)
}

// RenderTab returns the live markup of a context's document
func (h *Handlers) RenderTab(c *gin.Context) {
	tabID := c.Param("id")
	if err := validateTabID(tabID); err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.replyTimeout)
	defer cancel()

	markup, err := h.tabs.Render(ctx, tabID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(markup))
}

// InspectTab summarizes the forms and selectors of a context's live document
func (h *Handlers) InspectTab(c *gin.Context) {
	tabID := c.Param("id")
	if err := validateTabID(tabID); err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.replyTimeout)
	defer cancel()

	markup, err := h.tabs.Render(ctx, tabID)
	if err != nil {
		h.fail(c, err)
		return
	}
	page, err := inspect.Inspect(markup)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// OpenTab creates a context, focuses it and loads a fixture. The context is
// created even when the load fails.
func (h *Handlers) OpenTab(c *gin.Context) {
	var req fixtureRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, badRequest("invalid body: %v", err))
		return
	}
	if req.Fixture == "" {
		req.Fixture = fixtures.KeyLogin
	}

	tab, err := h.tabs.Open(c.Request.Context(), req.Fixture)
	resp := gin.H{"tab": tab, "activeId": h.tabs.ActiveID()}
	if err != nil {
		h.logger.Warn("Context opened without content", zap.String("context_id", tab.ID), zap.Error(err))
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

// CloseTab destroys a context
func (h *Handlers) CloseTab(c *gin.Context) {
	tabID := c.Param("id")
	if err := validateTabID(tabID); err != nil {
		h.fail(c, err)
		return
	}

	if !h.tabs.Close(tabID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"id":       tabID,
		"activeId": h.tabs.ActiveID(),
	})
}

// ActivateTab focuses a context
func (h *Handlers) ActivateTab(c *gin.Context) {
	tabID := c.Param("id")
	if err := validateTabID(tabID); err != nil {
		h.fail(c, err)
		return
	}
	if !h.tabs.Exists(tabID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
		return
	}

	h.tabs.SetActive(tabID)
	c.JSON(http.StatusOK, gin.H{"activeId": h.tabs.ActiveID()})
}

// NavigateTab loads a fixture into an existing context
func (h *Handlers) NavigateTab(c *gin.Context) {
	tabID := c.Param("id")
	if err := validateTabID(tabID); err != nil {
		h.fail(c, err)
		return
	}

	var req fixtureRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Fixture == "" {
		h.fail(c, badRequest("body must name a fixture"))
		return
	}

	if err := h.tabs.LoadFixture(c.Request.Context(), tabID, req.Fixture); err != nil {
		h.fail(c, err)
		return
	}

	tab, _ := h.tabs.Get(tabID)
	c.JSON(http.StatusOK, gin.H{"tab": tab})
}

// SendCommand posts a raw command to a context's document. With await set,
// it waits for the document's reply.
func (h *Handlers) SendCommand(c *gin.Context) {
	tabID := c.Param("id")
	if err := validateTabID(tabID); err != nil {
		h.fail(c, err)
		return
	}

	body, err := readLimited(c.Request.Body, MaxCommandSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req commandRequest
	if err := decodeJSON(body, &req); err != nil {
		h.fail(c, badRequest("invalid body: %v", err))
		return
	}
	if err := validateCommand(req.Command); err != nil {
		h.fail(c, err)
		return
	}

	cmd := protocol.NewCommand(req.Command, req.Args)
	if !req.Await {
		if err := h.tabs.Send(tabID, cmd, nil); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"sent": true, "command": req.Command})
		return
	}

	port := protocol.NewPort()
	if err := h.tabs.Send(tabID, cmd, port); err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.replyTimeout)
	defer cancel()

	reply, err := port.Await(ctx)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"sent": true, "command": req.Command, "answered": true, "reply": reply})
	case errors.Is(err, protocol.ErrPortClosed):
		c.JSON(http.StatusOK, gin.H{"sent": true, "command": req.Command, "answered": false})
	default:
		h.fail(c, errNoReply)
	}
}

// ListFixtures lists the fixture catalog
func (h *Handlers) ListFixtures(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fixtures": h.catalog.List()})
}
