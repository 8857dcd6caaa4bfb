package server

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Sisicca/EditorialAgents/internal/outline"
	"github.com/Sisicca/EditorialAgents/internal/planner"
	"github.com/Sisicca/EditorialAgents/internal/retrieval"
)

// Generator is the pipeline surface the handlers drive. Implemented by
// pipeline.Pipeline.
type Generator interface {
	Plan(ctx context.Context, brief planner.Brief) (*outline.Tree, error)
	Retrieve(ctx context.Context, tree *outline.Tree, sink retrieval.ProgressSink) error
	ComposeArticle(ctx context.Context, tree *outline.Tree) (string, error)
}

// ProcessHandler exposes the stepwise article workflow: start a process to
// plan the outline, optionally edit it, then run retrieval and composition
// as background stages while polling status.
type ProcessHandler struct {
	Pipeline Generator
	Statuses *StatusManager
	Logger   *log.Logger
}

func (h *ProcessHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("", h.start)
	g.GET("/:id", h.get)
	g.PUT("/:id/outline", h.putOutline)
	g.POST("/:id/retrieval/start", h.startRetrieval)
	g.GET("/:id/retrieval/status", h.retrievalStatus)
	g.POST("/:id/compose/start", h.startCompose)
	g.GET("/:id/article", h.article)
}

func (h *ProcessHandler) start(c echo.Context) error {
	var req StartProcessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	id := uuid.NewString()
	h.Statuses.Create(id, req.brief())
	go func() {
		tree, err := h.Pipeline.Plan(context.Background(), req.brief())
		if err != nil {
			h.logger().Printf("process %s: planning failed: %v", id, err)
			h.Statuses.SetFailed(id, err)
			return
		}
		h.Statuses.SetTree(id, tree, StatusOutlineReady)
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"id": id})
}

func (h *ProcessHandler) get(c echo.Context) error {
	view, err := h.Statuses.View(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}

// putOutline replaces the planned outline with an edited one. Only allowed
// while the process waits for retrieval to start.
func (h *ProcessHandler) putOutline(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.Statuses.View(id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	body, err := readBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tree, err := outline.FromJSON(body)
	if err != nil {
		// report every violation, not just the first
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.Statuses.Transition(id, StatusOutlineReady, StatusOutlineReady); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	h.Statuses.SetTree(id, tree, StatusOutlineReady)
	return c.JSON(http.StatusOK, map[string]string{"status": string(StatusOutlineReady)})
}

func (h *ProcessHandler) startRetrieval(c echo.Context) error {
	id := c.Param("id")
	if err := h.Statuses.Transition(id, StatusOutlineReady, StatusRetrieving); err != nil {
		if err == errNotFound {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	tree, err := h.Statuses.Tree(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	go func() {
		if err := h.Pipeline.Retrieve(context.Background(), tree, h.Statuses.Sink(id)); err != nil {
			h.logger().Printf("process %s: retrieval aborted: %v", id, err)
			h.Statuses.SetFailed(id, err)
			return
		}
		h.Statuses.Snapshot(id, StatusRetrieved)
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": string(StatusRetrieving)})
}

func (h *ProcessHandler) retrievalStatus(c echo.Context) error {
	view, err := h.Statuses.RetrievalStatus(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}

func (h *ProcessHandler) startCompose(c echo.Context) error {
	id := c.Param("id")
	if err := h.Statuses.Transition(id, StatusRetrieved, StatusComposing); err != nil {
		if err == errNotFound {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	tree, err := h.Statuses.Tree(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	go func() {
		article, err := h.Pipeline.ComposeArticle(context.Background(), tree)
		if err != nil {
			h.logger().Printf("process %s: composition failed: %v", id, err)
			h.Statuses.SetFailed(id, err)
			return
		}
		h.Statuses.Snapshot(id, StatusComposing)
		h.Statuses.SetArticle(id, article)
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": string(StatusComposing)})
}

func (h *ProcessHandler) article(c echo.Context) error {
	article, status, err := h.Statuses.Article(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if status != StatusCompleted {
		return echo.NewHTTPError(http.StatusConflict, "article not ready, process is "+string(status))
	}
	return c.JSON(http.StatusOK, map[string]string{"article": article})
}

func readBody(c echo.Context) ([]byte, error) {
	return io.ReadAll(c.Request().Body)
}

func (h *ProcessHandler) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.New(log.Writer(), "[PROCESS] ", log.LstdFlags)
}
