package docmanager

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"workforce-backend/internal/shared/telemetry"
)

const (
	defaultResetDelay = 1500 * time.Millisecond
	defaultPendingTTL = 5 * time.Second
	uploadStartPct    = 5
)

var stagePercent = map[string]int{
	"starting":   10,
	"movingFile": 40,
	"updatingDb": 80,
	"done":       100,
	"error":      0,
}

// stageRank orders the stages of one upload; done and error are both final.
var stageRank = map[string]int{
	"starting":   1,
	"movingFile": 2,
	"updatingDb": 3,
	"done":       4,
	"error":      4,
}

// Percent maps a progress status to its bar value. Unknown statuses are 0.
func Percent(status string) int {
	return stagePercent[status]
}

// State is a snapshot of what Manager shows.
type State struct {
	Documents      []Document
	Loading        bool
	Uploading      bool
	Message        string
	Progress       int
	LastUploadedID string
}

// Manager tracks the document list and the progress of the latest upload.
// Methods are safe for concurrent use.
type Manager struct {
	api        API
	resetDelay time.Duration
	pendingTTL time.Duration
	afterFunc  func(time.Duration, func()) func() bool
	now        func() time.Time
	onChange   func(State)

	mu         sync.Mutex
	state      State
	pending    []pendingEvent
	stopReset  func() bool
	subscribed bool
	// appliedRank is the stageRank last applied for LastUploadedID.
	appliedRank int
}

type pendingEvent struct {
	ev Event
	at time.Time
}

type Option func(*Manager)

// WithClock replaces time.Now and time.AfterFunc.
func WithClock(now func() time.Time, afterFunc func(time.Duration, func()) func() bool) Option {
	return func(m *Manager) {
		m.now = now
		m.afterFunc = afterFunc
	}
}

// WithResetDelay sets how long a finished upload keeps its progress value.
func WithResetDelay(d time.Duration) Option {
	return func(m *Manager) { m.resetDelay = d }
}

// OnChange registers a callback invoked with a snapshot after each state change.
func OnChange(fn func(State)) Option {
	return func(m *Manager) { m.onChange = fn }
}

func NewManager(api API, opts ...Option) *Manager {
	m := &Manager{
		api:        api,
		resetDelay: defaultResetDelay,
		pendingTTL: defaultPendingTTL,
		now:        time.Now,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		state: State{Documents: []Document{}},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Manager) snapshot() State {
	out := m.state
	out.Documents = append([]Document(nil), m.state.Documents...)
	return out
}

// update applies fn under the lock and notifies the listener.
func (m *Manager) update(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	snap := m.snapshot()
	m.mu.Unlock()
	if m.onChange != nil {
		m.onChange(snap)
	}
}

func (m *Manager) setMessage(msg string) {
	m.update(func(s *State) { s.Message = msg })
}

// Load refreshes the list. A failure keeps the previous documents.
func (m *Manager) Load(ctx context.Context) error {
	m.update(func(s *State) { s.Loading = true })
	docs, err := m.api.List(ctx)
	m.update(func(s *State) {
		s.Loading = false
		if err != nil {
			s.Message = "Failed to load documents"
			return
		}
		s.Documents = docs
	})
	return err
}

// Upload sends a file. Progress events that arrived before the server
// returned the document id are applied once the id is known.
func (m *Manager) Upload(ctx context.Context, fileName string, body io.Reader, docType string) (Document, error) {
	if body == nil || strings.TrimSpace(fileName) == "" {
		m.setMessage("Please select a file")
		return Document{}, errors.New("no file selected")
	}
	m.update(func(s *State) {
		s.Uploading = true
		s.Message = "Uploading..."
		s.Progress = uploadStartPct
	})

	doc, err := m.api.Upload(ctx, fileName, body, docType)
	if err != nil {
		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
		m.update(func(s *State) {
			s.Uploading = false
			s.Message = "Upload failed: " + err.Error()
			s.Progress = 0
		})
		return Document{}, err
	}

	m.mu.Lock()
	m.state.Uploading = false
	m.state.Message = "Upload successful! Processing..."
	m.state.LastUploadedID = doc.ID
	m.appliedRank = 0
	finished := false
	// Replay under the same lock as the id switch so a live event for doc.ID
	// cannot land between them and then be overwritten by an older stage.
	for _, ev := range m.takePending(doc.ID) {
		done, _ := m.applyLocked(ev)
		finished = finished || done
	}
	m.mu.Unlock()
	m.update(func(*State) {})

	if finished {
		_ = m.Load(ctx)
	}
	return doc, nil
}

// takePending returns buffered events for id that are still fresh and
// clears the buffer. Callers hold m.mu.
func (m *Manager) takePending(id string) []Event {
	cutoff := m.now().Add(-m.pendingTTL)
	var out []Event
	for _, p := range m.pending {
		if p.ev.DocumentID == id && !p.at.Before(cutoff) {
			out = append(out, p.ev)
		}
	}
	m.pending = nil
	return out
}

// HandleEvent applies a progress event for the latest upload. Events for
// other documents are ignored, except while an upload is in flight, when
// they are held until its id is known.
func (m *Manager) HandleEvent(ctx context.Context, ev Event) {
	if ev.DocumentID == "" {
		return
	}
	m.mu.Lock()
	if ev.DocumentID != m.state.LastUploadedID {
		if m.state.Uploading {
			m.pending = append(m.pending, pendingEvent{ev: ev, at: m.now()})
		}
		m.mu.Unlock()
		return
	}
	finished, applied := m.applyLocked(ev)
	m.mu.Unlock()
	if !applied {
		return
	}
	m.update(func(*State) {})

	if finished {
		_ = m.Load(ctx)
	}
}

// applyLocked moves the bar to ev's stage unless the upload already reached
// that stage or a later one. It reports whether ev ended the upload and
// whether it changed anything. Callers hold m.mu.
func (m *Manager) applyLocked(ev Event) (finished, applied bool) {
	rank := stageRank[ev.Status]
	if rank == 0 || rank <= m.appliedRank {
		return false, false
	}
	m.appliedRank = rank
	m.state.Progress = Percent(ev.Status)
	m.state.Message = "Status: " + ev.Status
	finished = ev.Status == "done" || ev.Status == "error"
	if finished {
		if m.stopReset != nil {
			m.stopReset()
		}
		m.stopReset = m.afterFunc(m.resetDelay, m.resetProgress)
	}
	return finished, true
}

func (m *Manager) resetProgress() {
	m.update(func(s *State) { s.Progress = 0 })
}

// Delete removes a document and reloads the list. An already removed
// document is reported as such rather than as a failure.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.setMessage("Deleting document...")
	msg, err := m.api.Delete(ctx, id)
	if err != nil {
		if StatusOf(err) == 404 {
			m.setMessage("Document already deleted")
			_ = m.Load(ctx)
			return nil
		}
		m.setMessage("Delete failed: " + err.Error())
		return err
	}
	if msg != "Document already deleted" {
		msg = "Document deleted successfully"
	}
	m.setMessage(msg)
	_ = m.Load(ctx)
	return nil
}

// Download resolves a presigned URL for id.
func (m *Manager) Download(ctx context.Context, id string) (Download, error) {
	m.setMessage("Preparing download...")
	dl, err := m.api.Download(ctx, id)
	if err != nil {
		switch StatusOf(err) {
		case 404:
			m.setMessage("Document not found")
		case 403:
			m.setMessage("Not authorized to download this document")
		default:
			m.setMessage("Download failed: " + err.Error())
		}
		return Download{}, err
	}
	m.setMessage("Download started: " + dl.FileName)
	return dl, nil
}

// Search replaces the list with matches for query. A blank query reloads.
func (m *Manager) Search(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return m.Load(ctx)
	}
	docs, err := m.api.Search(ctx, query)
	if err != nil {
		m.setMessage("Search failed")
		return err
	}
	m.update(func(s *State) { s.Documents = docs })
	return nil
}

// Subscribe opens the progress stream in the background unless one is
// already open. The stream lives until ctx ends or the server disconnects.
func (m *Manager) Subscribe(ctx context.Context) {
	m.mu.Lock()
	if m.subscribed {
		m.mu.Unlock()
		return
	}
	m.subscribed = true
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			m.subscribed = false
			m.mu.Unlock()
		}()
		err := m.api.Stream(ctx, func(ev Event) { m.HandleEvent(ctx, ev) })
		if err != nil && ctx.Err() == nil {
			telemetry.Warn("docmanager.stream_closed", map[string]any{"error": err.Error()})
		}
	}()
}
