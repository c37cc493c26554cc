package docmanager

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeAPI struct {
	mu        sync.Mutex
	docs      []Document
	listErr   error
	searchErr error
	uploadErr error
	deleteMsg string
	deleteErr error
	download  Download
	dlErr     error
	lists     int
	// onUpload runs before Upload returns, e.g. to deliver early events.
	onUpload func(Document)
	uploadID string
	stream   chan Event
}

func (f *fakeAPI) List(ctx context.Context) ([]Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Document(nil), f.docs...), nil
}

func (f *fakeAPI) Search(ctx context.Context, query string) ([]Document, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []Document
	for _, d := range f.docs {
		if strings.Contains(d.FileName, query) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeAPI) Upload(ctx context.Context, fileName string, body io.Reader, docType string) (Document, error) {
	if f.uploadErr != nil {
		return Document{}, f.uploadErr
	}
	doc := Document{ID: f.uploadID, FileName: fileName, DocumentType: docType}
	if f.onUpload != nil {
		f.onUpload(doc)
	}
	f.mu.Lock()
	f.docs = append(f.docs, doc)
	f.mu.Unlock()
	return doc, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id string) (string, error) {
	return f.deleteMsg, f.deleteErr
}

func (f *fakeAPI) Download(ctx context.Context, id string) (Download, error) {
	return f.download, f.dlErr
}

func (f *fakeAPI) Stream(ctx context.Context, fn func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-f.stream:
			if !ok {
				return errors.New("stream closed")
			}
			fn(ev)
		}
	}
}

func (f *fakeAPI) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

type fakeTimers struct {
	mu      sync.Mutex
	now     time.Time
	delays  []time.Duration
	pending []func()
}

func (ft *fakeTimers) Now() time.Time {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.now
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) func() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.delays = append(ft.delays, d)
	ft.pending = append(ft.pending, f)
	return func() bool { return true }
}

func (ft *fakeTimers) fire() {
	ft.mu.Lock()
	fns := ft.pending
	ft.pending = nil
	ft.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func newManager(api *fakeAPI) (*Manager, *fakeTimers) {
	ft := &fakeTimers{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewManager(api, WithClock(ft.Now, ft.AfterFunc)), ft
}

func TestLoadKeepsListOnFailure(t *testing.T) {
	api := &fakeAPI{docs: []Document{{ID: "d1"}}}
	m, _ := newManager(api)
	ctx := context.Background()
	if err := m.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	api.listErr = errors.New("offline")
	if err := m.Load(ctx); err == nil {
		t.Fatalf("expected error")
	}
	st := m.State()
	if len(st.Documents) != 1 || st.Message != "Failed to load documents" || st.Loading {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestUploadThenProgress(t *testing.T) {
	api := &fakeAPI{uploadID: "d1"}
	var progressSeen []int
	var mu sync.Mutex
	ft := &fakeTimers{now: time.Now()}
	m := NewManager(api, WithClock(ft.Now, ft.AfterFunc), OnChange(func(s State) {
		mu.Lock()
		progressSeen = append(progressSeen, s.Progress)
		mu.Unlock()
	}))
	ctx := context.Background()

	if _, err := m.Upload(ctx, "cv.pdf", strings.NewReader("x"), "resume"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	st := m.State()
	if st.LastUploadedID != "d1" || st.Message != "Upload successful! Processing..." || st.Progress != 5 {
		t.Fatalf("unexpected state after upload %+v", st)
	}
	mu.Lock()
	if len(progressSeen) == 0 || progressSeen[0] != 5 {
		t.Fatalf("expected progress 5 first, got %v", progressSeen)
	}
	mu.Unlock()

	m.HandleEvent(ctx, Event{DocumentID: "other", Status: "done"})
	if st := m.State(); st.Progress != 5 {
		t.Fatalf("events for other ids must be ignored, got %+v", st)
	}

	m.HandleEvent(ctx, Event{DocumentID: "d1", Status: "movingFile"})
	if st := m.State(); st.Progress != 40 || st.Message != "Status: movingFile" {
		t.Fatalf("unexpected state %+v", st)
	}

	before := api.listCalls()
	m.HandleEvent(ctx, Event{DocumentID: "d1", Status: "done"})
	st = m.State()
	if st.Progress != 100 || api.listCalls() != before+1 {
		t.Fatalf("done should set 100 and reload, got %+v lists=%d", st, api.listCalls())
	}
	if len(st.Documents) != 1 {
		t.Fatalf("expected reloaded list, got %+v", st.Documents)
	}
	if len(ft.delays) != 1 || ft.delays[0] != 1500*time.Millisecond {
		t.Fatalf("expected a 1.5s reset, got %v", ft.delays)
	}
	ft.fire()
	if st := m.State(); st.Progress != 0 {
		t.Fatalf("expected reset to 0, got %d", st.Progress)
	}
}

func TestEarlyEventsAreReplayed(t *testing.T) {
	api := &fakeAPI{uploadID: "d2"}
	m, _ := newManager(api)
	ctx := context.Background()
	api.onUpload = func(doc Document) {
		m.HandleEvent(ctx, Event{DocumentID: doc.ID, Status: "starting"})
		m.HandleEvent(ctx, Event{DocumentID: "unrelated", Status: "done"})
		m.HandleEvent(ctx, Event{DocumentID: doc.ID, Status: "updatingDb"})
	}

	if _, err := m.Upload(ctx, "a.txt", strings.NewReader("x"), ""); err != nil {
		t.Fatalf("upload: %v", err)
	}
	st := m.State()
	if st.Progress != 80 || st.Message != "Status: updatingDb" {
		t.Fatalf("expected buffered events to apply, got %+v", st)
	}
}

func TestLiveEventsAfterUploadAreNotRolledBack(t *testing.T) {
	api := &fakeAPI{uploadID: "d1"}
	ft := &fakeTimers{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	var m *Manager
	delivered := false
	m = NewManager(api, WithClock(ft.Now, ft.AfterFunc), WithResetDelay(time.Hour), OnChange(func(s State) {
		// The stream delivers the later stages the moment the id is known.
		if s.LastUploadedID == "d1" && !delivered {
			delivered = true
			m.HandleEvent(ctx, Event{DocumentID: "d1", Status: "updatingDb"})
			m.HandleEvent(ctx, Event{DocumentID: "d1", Status: "done"})
		}
	}))
	api.onUpload = func(doc Document) {
		m.HandleEvent(ctx, Event{DocumentID: doc.ID, Status: "starting"})
		m.HandleEvent(ctx, Event{DocumentID: doc.ID, Status: "movingFile"})
	}

	if _, err := m.Upload(ctx, "contract.pdf", strings.NewReader("x"), "contract"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if st := m.State(); st.Progress != 100 || st.Message != "Status: done" {
		t.Fatalf("expected the finished upload to stay at 100, got progress=%d message=%q", st.Progress, st.Message)
	}
}

func TestOutOfOrderEventsAreIgnored(t *testing.T) {
	api := &fakeAPI{uploadID: "d4"}
	m, ft := newManager(api)
	ctx := context.Background()
	if _, err := m.Upload(ctx, "a.txt", strings.NewReader("x"), ""); err != nil {
		t.Fatalf("upload: %v", err)
	}
	m.HandleEvent(ctx, Event{DocumentID: "d4", Status: "updatingDb"})
	m.HandleEvent(ctx, Event{DocumentID: "d4", Status: "movingFile"})
	if st := m.State(); st.Progress != 80 || st.Message != "Status: updatingDb" {
		t.Fatalf("older stage must not move the bar back, got %+v", st)
	}
	m.HandleEvent(ctx, Event{DocumentID: "d4", Status: "done"})
	m.HandleEvent(ctx, Event{DocumentID: "d4", Status: "error"})
	if st := m.State(); st.Progress != 100 || st.Message != "Status: done" {
		t.Fatalf("a finished upload stays finished, got %+v", st)
	}
	if len(ft.delays) != 1 {
		t.Fatalf("expected one reset timer, got %d", len(ft.delays))
	}
}

func TestStaleEarlyEventsAreDropped(t *testing.T) {
	api := &fakeAPI{uploadID: "d3"}
	m, ft := newManager(api)
	ctx := context.Background()
	api.onUpload = func(doc Document) {
		m.HandleEvent(ctx, Event{DocumentID: doc.ID, Status: "movingFile"})
		ft.mu.Lock()
		ft.now = ft.now.Add(time.Minute)
		ft.mu.Unlock()
	}
	if _, err := m.Upload(ctx, "a.txt", strings.NewReader("x"), ""); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if st := m.State(); st.Progress != 5 {
		t.Fatalf("stale event should not apply, got %+v", st)
	}
}

func TestUploadFailure(t *testing.T) {
	api := &fakeAPI{uploadErr: &APIError{Status: 400, Message: "No file uploaded"}}
	m, _ := newManager(api)
	if _, err := m.Upload(context.Background(), "a.txt", strings.NewReader("x"), ""); err == nil {
		t.Fatalf("expected error")
	}
	st := m.State()
	if st.Message != "Upload failed: No file uploaded" || st.Progress != 0 || st.Uploading {
		t.Fatalf("unexpected state %+v", st)
	}

	if _, err := m.Upload(context.Background(), "", nil, ""); err == nil {
		t.Fatalf("expected error without file")
	}
	if st := m.State(); st.Message != "Please select a file" {
		t.Fatalf("unexpected message %q", st.Message)
	}
}

func TestDeleteMessages(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		msg     string
		err     error
		want    string
		wantErr bool
		reload  bool
	}{
		{"deleted", "Document deleted successfully", nil, "Document deleted successfully", false, true},
		{"soft", "Document already deleted", nil, "Document already deleted", false, true},
		{"404", "", &APIError{Status: 404, Message: "gone"}, "Document already deleted", false, true},
		{"403", "", &APIError{Status: 403, Message: "Not authorized to delete this document"}, "Delete failed: Not authorized to delete this document", true, false},
	}
	for _, tc := range cases {
		api := &fakeAPI{deleteMsg: tc.msg, deleteErr: tc.err}
		m, _ := newManager(api)
		err := m.Delete(ctx, "d1")
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got := m.State().Message; got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
		if reloaded := api.listCalls() == 1; reloaded != tc.reload {
			t.Fatalf("%s: reload=%v, want %v", tc.name, reloaded, tc.reload)
		}
	}
}

func TestDownloadMessages(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		err  error
		want string
	}{
		{&APIError{Status: 404}, "Document not found"},
		{&APIError{Status: 403}, "Not authorized to download this document"},
		{&APIError{Status: 500, Message: "boom"}, "Download failed: boom"},
		{nil, "Download started: cv.pdf"},
	}
	for _, tc := range cases {
		api := &fakeAPI{download: Download{URL: "http://x", FileName: "cv.pdf"}, dlErr: tc.err}
		m, _ := newManager(api)
		dl, err := m.Download(ctx, "d1")
		if (err != nil) != (tc.err != nil) {
			t.Fatalf("unexpected error %v", err)
		}
		if tc.err == nil && dl.URL != "http://x" {
			t.Fatalf("unexpected download %+v", dl)
		}
		if got := m.State().Message; got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestSearch(t *testing.T) {
	api := &fakeAPI{docs: []Document{{ID: "1", FileName: "march.pdf"}, {ID: "2", FileName: "cv.pdf"}}}
	m, _ := newManager(api)
	ctx := context.Background()

	if err := m.Search(ctx, "march"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if st := m.State(); len(st.Documents) != 1 {
		t.Fatalf("expected one match, got %+v", st.Documents)
	}

	api.searchErr = errors.New("down")
	if err := m.Search(ctx, "cv"); err == nil {
		t.Fatalf("expected error")
	}
	st := m.State()
	if st.Message != "Search failed" || len(st.Documents) != 1 {
		t.Fatalf("failed search must keep list, got %+v", st)
	}

	if err := m.Search(ctx, "   "); err != nil {
		t.Fatalf("blank search: %v", err)
	}
	if st := m.State(); len(st.Documents) != 2 || api.listCalls() != 1 {
		t.Fatalf("blank search should reload, got %+v", st)
	}
}

func TestSubscribeOpensOnce(t *testing.T) {
	api := &fakeAPI{uploadID: "d1", stream: make(chan Event)}
	m, _ := newManager(api)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := m.Upload(ctx, "a.txt", strings.NewReader("x"), ""); err != nil {
		t.Fatalf("upload: %v", err)
	}
	m.Subscribe(ctx)
	m.Subscribe(ctx)

	api.stream <- Event{DocumentID: "d1", Status: "movingFile"}
	deadline := time.Now().Add(2 * time.Second)
	for m.State().Progress != 40 {
		if time.Now().After(deadline) {
			t.Fatalf("event not applied, state %+v", m.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPercent(t *testing.T) {
	want := map[string]int{"starting": 10, "movingFile": 40, "updatingDb": 80, "done": 100, "error": 0, "bogus": 0}
	for status, pct := range want {
		if got := Percent(status); got != pct {
			t.Fatalf("Percent(%q) = %d, want %d", status, got, pct)
		}
	}
}
