package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slskdbot/slskd-bot/internal/http"
	"github.com/slskdbot/slskd-bot/internal/results"
	"github.com/slskdbot/slskd-bot/internal/slskd"
	"github.com/slskdbot/slskd-bot/internal/tracking"
)

type fakeSlskd struct {
	mu sync.Mutex

	startErr   error
	completeAt int // SearchState call that reports completion; 0 = never
	stateErr   error
	responses  [][]slskd.SearchResponse
	stateCalls int
	respCalls  int
	enqueueErr error
	enqueued   map[string][]slskd.File
	transfers  []slskd.TransferUser
	listErr    error
	appState   *slskd.ApplicationState
	appErrs    []error
	appCalls   int
}

func (f *fakeSlskd) StartSearch(_ context.Context, query string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return "search-1", nil
}

func (f *fakeSlskd) SearchState(_ context.Context, id string) (*slskd.SearchState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCalls++
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	return &slskd.SearchState{ID: id, IsComplete: f.completeAt > 0 && f.stateCalls >= f.completeAt}, nil
}

func (f *fakeSlskd) SearchResponses(_ context.Context, _ string) ([]slskd.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respCalls++
	if len(f.responses) == 0 {
		return nil, nil
	}
	i := f.respCalls - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func (f *fakeSlskd) Enqueue(_ context.Context, username string, files []slskd.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	if f.enqueued == nil {
		f.enqueued = make(map[string][]slskd.File)
	}
	f.enqueued[username] = append(f.enqueued[username], files...)
	return nil
}

func (f *fakeSlskd) ListDownloads(_ context.Context) ([]slskd.TransferUser, error) {
	return f.transfers, f.listErr
}

func (f *fakeSlskd) ApplicationState(_ context.Context) (*slskd.ApplicationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appCalls++
	if len(f.appErrs) > 0 {
		err := f.appErrs[0]
		f.appErrs = f.appErrs[1:]
		return nil, err
	}
	return f.appState, nil
}

func newTestService(api *fakeSlskd) *Service {
	return NewService(api, api, tracking.NewStore(), results.NewSessions(time.Minute), nil,
		Options{PollAttempts: 5, PollInterval: time.Millisecond, PageSize: 10}, nil)
}

func group(user string, token int64, files ...string) slskd.SearchResponse {
	g := slskd.SearchResponse{Username: user, Token: token, HasFreeUploadSlot: true, UploadSpeed: 2048}
	for _, name := range files {
		g.Files = append(g.Files, slskd.File{Filename: name, Size: 1 << 20})
	}
	return g
}

func TestSearch_StopsWhenComplete(t *testing.T) {
	api := &fakeSlskd{
		completeAt: 3,
		responses: [][]slskd.SearchResponse{
			{group("alice", 1, "a.mp3")},
			{group("alice", 1, "a.mp3"), group("bob", 2, "b.mp3")},
			{group("alice", 1, "a.mp3"), group("bob", 2, "b.mp3"), group("carol", 3, "c.mp3")},
		},
	}
	svc := newTestService(api)

	var updates []int
	set, err := svc.Search(context.Background(), "  song  ", func(s *results.Set) {
		updates = append(updates, s.Len())
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if set.Len() != 3 || set.Query() != "song" {
		t.Errorf("set len %d query %q", set.Len(), set.Query())
	}
	if api.stateCalls != 3 {
		t.Errorf("state polls = %d, want 3", api.stateCalls)
	}
	if len(updates) != 3 || updates[0] != 1 || updates[2] != 3 {
		t.Errorf("updates = %v", updates)
	}
}

func TestSearch_AttemptBudget(t *testing.T) {
	api := &fakeSlskd{responses: [][]slskd.SearchResponse{{group("alice", 1, "a.mp3")}}}
	svc := newTestService(api)

	set, err := svc.Search(context.Background(), "song", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if api.stateCalls != 5 {
		t.Errorf("state polls = %d, want 5", api.stateCalls)
	}
	if set.Len() != 1 {
		t.Errorf("len = %d", set.Len())
	}
}

func TestSearch_PollFailuresAreNoData(t *testing.T) {
	api := &fakeSlskd{stateErr: errors.New("timeout")}
	svc := newTestService(api)

	set, err := svc.Search(context.Background(), "song", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if set.Len() != 0 || api.stateCalls != 5 {
		t.Errorf("len %d polls %d", set.Len(), api.stateCalls)
	}
}

func TestSearch_StartFailure(t *testing.T) {
	svc := newTestService(&fakeSlskd{startErr: errors.New("401")})

	_, err := svc.Search(context.Background(), "song", nil)
	if !errors.Is(err, ErrSearchFailed) {
		t.Errorf("err = %v, want ErrSearchFailed", err)
	}
	if _, err := svc.Search(context.Background(), "   ", nil); !errors.Is(err, ErrSearchFailed) {
		t.Errorf("empty query err = %v", err)
	}
}

func TestSearch_ContextCancelled(t *testing.T) {
	api := &fakeSlskd{}
	svc := NewService(api, api, tracking.NewStore(), results.NewSessions(time.Minute), nil,
		Options{PollAttempts: 5, PollInterval: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Search(ctx, "song", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestDownload_File(t *testing.T) {
	api := &fakeSlskd{}
	svc := newTestService(api)
	svc.Activate("u1", results.NewSet("song", []slskd.SearchResponse{group("Alice", 7, "music\\song.mp3")}))

	// Item 1 is the file, item 2 its folder.
	q, err := svc.Download(context.Background(), "u1", "c1", 1)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(q.Keys) != 1 || q.Keys[0] != "alice:song.mp3" || q.FolderID != "" {
		t.Errorf("queued %+v", q)
	}
	d, ok := svc.Store().Get("alice:song.mp3")
	if !ok || d.RequesterID != "u1" || d.ChannelID != "c1" || d.Filename != "song.mp3" || d.Notified {
		t.Errorf("tracked %+v ok=%v", d, ok)
	}
	if files := api.enqueued["Alice"]; len(files) != 1 || files[0].Filename != "music\\song.mp3" {
		t.Errorf("enqueued %+v", api.enqueued)
	}
}

func TestDownload_Folder(t *testing.T) {
	api := &fakeSlskd{}
	svc := newTestService(api)
	svc.Activate("u1", results.NewSet("album", []slskd.SearchResponse{
		group("alice", 1, "Album\\01.mp3", "Album\\02.mp3", "Album\\03.mp3"),
	}))

	q, err := svc.Download(context.Background(), "u1", "c1", 4)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if q.Item.Kind != results.KindFolder || q.FolderID != "alice:album" || len(q.Keys) != 3 {
		t.Fatalf("queued %+v", q)
	}
	g, ok := svc.Store().Folder("alice:album")
	if !ok || g.Total != 3 || g.Completed != 0 || g.Name != "Album" {
		t.Errorf("folder %+v ok=%v", g, ok)
	}
	for _, key := range q.Keys {
		d, ok := svc.Store().Get(key)
		if !ok || d.FolderID != "alice:album" {
			t.Errorf("member %s = %+v ok=%v", key, d, ok)
		}
	}
	if len(api.enqueued["alice"]) != 3 {
		t.Errorf("enqueued %d files", len(api.enqueued["alice"]))
	}
}

func TestDownload_Errors(t *testing.T) {
	api := &fakeSlskd{}
	svc := newTestService(api)

	if _, err := svc.Download(context.Background(), "u1", "c1", 1); !errors.Is(err, ErrNoResults) {
		t.Errorf("no session err = %v", err)
	}

	svc.Activate("u1", results.NewSet("song", []slskd.SearchResponse{group("alice", 1, "a.mp3")}))
	_, err := svc.Download(context.Background(), "u1", "c1", 5)
	if !errors.Is(err, results.ErrNoSelection) || !strings.Contains(err.Error(), "between 1 and 1") {
		t.Errorf("range err = %v", err)
	}

	api.enqueueErr = errors.New("peer offline")
	if _, err := svc.Download(context.Background(), "u1", "c1", 1); !errors.Is(err, ErrEnqueueFailed) {
		t.Errorf("enqueue err = %v", err)
	}
	if svc.Store().Len() != 0 {
		t.Error("nothing should be tracked after a failed enqueue")
	}
}

func TestProgress(t *testing.T) {
	up := slskd.Transfer{Direction: "Upload", Filename: "x.mp3"}
	api := &fakeSlskd{transfers: []slskd.TransferUser{
		{Username: "bob", Directories: []slskd.TransferDirectory{{Files: []slskd.Transfer{
			{Direction: "Download", Filename: "dir\\z.mp3", State: "InProgress", PercentComplete: 55},
			up,
		}}}},
		{Username: "alice", Directories: []slskd.TransferDirectory{{Files: []slskd.Transfer{
			{Direction: "Download", Filename: "a.mp3", PercentComplete: 150},
		}}}},
	}}
	svc := newTestService(api)

	got, err := svc.Progress(context.Background())
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transfers", len(got))
	}
	if got[0].Peer != "alice" || got[0].State != "Unknown" || got[0].Percent != 100 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Filename != "z.mp3" || got[1].Percent != 55 {
		t.Errorf("second = %+v", got[1])
	}

	api.listErr = errors.New("down")
	if _, err := svc.Progress(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		percent  float64
		expected string
	}{
		{0, "----------"},
		{9.9, "----------"},
		{55, "#####-----"},
		{100, "##########"},
		{250, "##########"},
		{-3, "----------"},
	}
	for _, tt := range tests {
		if got := ProgressBar(tt.percent, "#", "-"); got != tt.expected {
			t.Errorf("ProgressBar(%v) = %q, want %q", tt.percent, got, tt.expected)
		}
	}
}

func TestProbe(t *testing.T) {
	retry := http.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	loggedIn := &slskd.ApplicationState{}
	loggedIn.Server.IsLoggedIn = true

	tests := []struct {
		name     string
		api      *fakeSlskd
		expected ProbeStatus
		calls    int
	}{
		{"logged in", &fakeSlskd{appState: loggedIn}, ProbeLoggedIn, 1},
		{"not logged in", &fakeSlskd{appState: &slskd.ApplicationState{}}, ProbeNotLoggedIn, 1},
		{"retries transient", &fakeSlskd{appState: loggedIn, appErrs: []error{&slskd.StatusError{Op: "get", StatusCode: 503}}}, ProbeLoggedIn, 2},
		{"auth is not retried", &fakeSlskd{appErrs: []error{&slskd.StatusError{Op: "get", StatusCode: 401}}}, ProbeUnreachable, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Probe(context.Background(), tt.api, retry, nil)
			if got != tt.expected {
				t.Errorf("Probe = %v, want %v", got, tt.expected)
			}
			if tt.api.appCalls != tt.calls {
				t.Errorf("calls = %d, want %d", tt.api.appCalls, tt.calls)
			}
		})
	}
}

func TestSweep(t *testing.T) {
	svc := newTestService(&fakeSlskd{})
	svc.Activate("u1", results.NewSet("song", nil))

	var expired []string
	n := svc.sweep(time.Now().Add(2*time.Minute), func(e results.Expired) { expired = append(expired, e.UserID) })

	if n != 1 || len(expired) != 1 || expired[0] != "u1" {
		t.Errorf("expired = %v", expired)
	}
	if svc.Sessions().Len() != 0 {
		t.Error("session should be gone")
	}
}

func TestRunJanitorStops(t *testing.T) {
	svc := newTestService(&fakeSlskd{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunJanitor(ctx, time.Millisecond, nil) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunJanitor = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
