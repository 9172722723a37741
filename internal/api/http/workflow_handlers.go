package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/workflow"
)

// ListWorkflows lists the workflow library
func (h *Handlers) ListWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workflows": h.library.List()})
}

// GetWorkflow returns one library workflow
func (h *Handlers) GetWorkflow(c *gin.Context) {
	w, ok := h.library.Get(c.Param("name"))
	if !ok {
		h.fail(c, workflow.ErrUnknownWorkflow)
		return
	}
	c.JSON(http.StatusOK, w)
}

// RunWorkflow runs an ad-hoc workflow document (YAML or JSON) against the
// active context
func (h *Handlers) RunWorkflow(c *gin.Context) {
	body, err := readLimited(c.Request.Body, MaxWorkflowSize)
	if err != nil {
		h.fail(c, err)
		return
	}

	w, err := workflow.Parse(body)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.start(c, w)
}

// RunNamedWorkflow runs a library workflow against the active context
func (h *Handlers) RunNamedWorkflow(c *gin.Context) {
	w, ok := h.library.Get(c.Param("name"))
	if !ok {
		h.fail(c, workflow.ErrUnknownWorkflow)
		return
	}
	h.start(c, w)
}

// start launches w. With ?wait=true the response carries the finished run;
// otherwise the run is returned as accepted.
func (h *Handlers) start(c *gin.Context, w *workflow.Workflow) {
	run, err := h.engine.Start(w)
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, run)
		return
	}

	finished, err := h.engine.Wait(c.Request.Context(), run.ID)
	if err != nil {
		// client went away; the run keeps going
		c.JSON(http.StatusAccepted, finished)
		return
	}
	c.JSON(http.StatusOK, finished)
}

// ListRuns lists retained runs, newest first
func (h *Handlers) ListRuns(c *gin.Context) {
	runs := h.engine.List()
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetRun returns one run, including in-flight step results
func (h *Handlers) GetRun(c *gin.Context) {
	run, ok := h.engine.Get(c.Param("id"))
	if !ok {
		h.fail(c, workflow.ErrRunNotFound)
		return
	}
	c.JSON(http.StatusOK, run)
}

// CancelRun aborts a running workflow
func (h *Handlers) CancelRun(c *gin.Context) {
	runID := c.Param("id")
	if err := h.engine.Cancel(runID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": runID})
}
