package server

import (
	"time"

	"github.com/Sisicca/EditorialAgents/internal/planner"
)

// ProcessStatus is the lifecycle of one article process. Stages advance
// strictly: planning, outline review, retrieval, composition.
type ProcessStatus string

const (
	StatusPlanning     ProcessStatus = "planning"
	StatusOutlineReady ProcessStatus = "outline_ready"
	StatusRetrieving   ProcessStatus = "retrieving"
	StatusRetrieved    ProcessStatus = "retrieved"
	StatusComposing    ProcessStatus = "composing"
	StatusCompleted    ProcessStatus = "completed"
	StatusFailed       ProcessStatus = "failed"
)

// LeafStatus mirrors the retrieval progress of one leaf for the status
// endpoint.
type LeafStatus struct {
	Message        string   `json:"message"`
	CurrentQuery   string   `json:"current_query,omitempty"`
	Iteration      int      `json:"iteration"`
	MaxIterations  int      `json:"max_iterations"`
	DocsPreview    []string `json:"docs_preview,omitempty"`
	ContentPreview string   `json:"content_preview,omitempty"`
	Completed      bool     `json:"completed"`
	Error          string   `json:"error,omitempty"`
}

// ProcessView is the JSON shape of one process. Outline is the raw node
// JSON captured at the last stage boundary.
type ProcessView struct {
	ID        string        `json:"id"`
	Topic     string        `json:"topic"`
	Status    ProcessStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	Outline   interface{}   `json:"outline,omitempty"`
	Article   string        `json:"article,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RetrievalStatusView aggregates per-leaf progress.
type RetrievalStatusView struct {
	Status    ProcessStatus         `json:"status"`
	Progress  float64               `json:"progress"`
	Leaves    map[string]LeafStatus `json:"leaves"`
	Completed int                   `json:"completed_leaves"`
	Total     int                   `json:"total_leaves"`
}

type StartProcessRequest struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Problem     string `json:"problem"`
}

func (r StartProcessRequest) brief() planner.Brief {
	return planner.Brief{Topic: r.Topic, Description: r.Description, Problem: r.Problem}
}

type AuthLoginRequest struct {
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}
