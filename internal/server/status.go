package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Sisicca/EditorialAgents/internal/outline"
	"github.com/Sisicca/EditorialAgents/internal/planner"
	"github.com/Sisicca/EditorialAgents/internal/retrieval"
)

// process is the in-memory state of one article run. The outline tree is
// only touched by the single background goroutine of the current stage;
// handlers read the JSON snapshot taken at the last stage boundary.
type process struct {
	id        string
	brief     planner.Brief
	status    ProcessStatus
	errMsg    string
	tree      *outline.Tree
	outlineJS json.RawMessage
	article   string
	leaves    map[string]LeafStatus
	createdAt time.Time
	updatedAt time.Time
}

// StatusManager is the process registry. One coarse mutex guards all
// processes; updates are tiny and frequent, contention is not a concern at
// this scale.
type StatusManager struct {
	mu        sync.Mutex
	processes map[string]*process
}

func NewStatusManager() *StatusManager {
	return &StatusManager{processes: make(map[string]*process)}
}

var errNotFound = fmt.Errorf("process not found")

func (m *StatusManager) Create(id string, brief planner.Brief) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.processes[id] = &process{
		id:        id,
		brief:     brief,
		status:    StatusPlanning,
		leaves:    make(map[string]LeafStatus),
		createdAt: now,
		updatedAt: now,
	}
}

// Transition moves a process from one status to another atomically. It
// fails when the process is missing or not in the expected state, which is
// how out-of-order stage starts surface as conflicts.
func (m *StatusManager) Transition(id string, from, to ProcessStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processes[id]
	if !ok {
		return errNotFound
	}
	if p.status != from {
		return fmt.Errorf("process is %s, expected %s", p.status, from)
	}
	p.status = to
	p.updatedAt = time.Now()
	return nil
}

func (m *StatusManager) SetFailed(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.processes[id]; ok {
		p.status = StatusFailed
		p.errMsg = err.Error()
		p.updatedAt = time.Now()
	}
}

// SetTree installs a new outline and snapshots it for readers.
func (m *StatusManager) SetTree(id string, tree *outline.Tree, status ProcessStatus) {
	snapshot, _ := json.Marshal(tree.Root)
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.processes[id]; ok {
		p.tree = tree
		p.outlineJS = snapshot
		p.status = status
		p.updatedAt = time.Now()
	}
}

// Snapshot refreshes the stored outline JSON from the live tree. Called at
// stage boundaries only, when no worker is writing nodes.
func (m *StatusManager) Snapshot(id string, status ProcessStatus) {
	m.mu.Lock()
	tree := (*outline.Tree)(nil)
	if p, ok := m.processes[id]; ok {
		tree = p.tree
	}
	m.mu.Unlock()
	if tree == nil {
		return
	}
	snapshot, _ := json.Marshal(tree.Root)
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.processes[id]; ok {
		p.outlineJS = snapshot
		p.status = status
		p.updatedAt = time.Now()
	}
}

func (m *StatusManager) SetArticle(id, article string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.processes[id]; ok {
		p.article = article
		p.status = StatusCompleted
		p.updatedAt = time.Now()
	}
}

// Tree returns the live outline tree for background stages.
func (m *StatusManager) Tree(id string) (*outline.Tree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processes[id]
	if !ok || p.tree == nil {
		return nil, errNotFound
	}
	return p.tree, nil
}

func (m *StatusManager) View(id string) (ProcessView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processes[id]
	if !ok {
		return ProcessView{}, errNotFound
	}
	view := ProcessView{
		ID:        p.id,
		Topic:     p.brief.Topic,
		Status:    p.status,
		Error:     p.errMsg,
		Article:   p.article,
		CreatedAt: p.createdAt,
		UpdatedAt: p.updatedAt,
	}
	if len(p.outlineJS) > 0 {
		view.Outline = p.outlineJS
	}
	return view, nil
}

func (m *StatusManager) RetrievalStatus(id string) (RetrievalStatusView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processes[id]
	if !ok {
		return RetrievalStatusView{}, errNotFound
	}
	leaves := make(map[string]LeafStatus, len(p.leaves))
	completed := 0
	for path, ls := range p.leaves {
		leaves[path] = ls
		if ls.Completed {
			completed++
		}
	}
	view := RetrievalStatusView{
		Status:    p.status,
		Leaves:    leaves,
		Completed: completed,
		Total:     len(leaves),
	}
	if view.Total > 0 {
		view.Progress = float64(completed) / float64(view.Total)
	}
	return view, nil
}

func (m *StatusManager) Article(id string) (string, ProcessStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processes[id]
	if !ok {
		return "", "", errNotFound
	}
	return p.article, p.status, nil
}

// Sink returns the retrieval progress sink writing into this process.
func (m *StatusManager) Sink(id string) retrieval.ProgressSink {
	return &processSink{m: m, id: id}
}

type processSink struct {
	m  *StatusManager
	id string
}

func (s *processSink) NodeStatus(path string, u retrieval.StatusUpdate) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.processes[s.id]
	if !ok {
		return
	}
	p.leaves[path] = LeafStatus{
		Message:        u.Message,
		CurrentQuery:   u.CurrentQuery,
		Iteration:      u.Iteration,
		MaxIterations:  u.MaxIterations,
		DocsPreview:    u.DocsPreview,
		ContentPreview: u.ContentPreview,
		Completed:      u.Completed,
		Error:          u.Err,
	}
	p.updatedAt = time.Now()
}
