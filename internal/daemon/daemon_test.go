package daemon

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/slskdbot/slskd-bot/internal/notify"
	"github.com/slskdbot/slskd-bot/internal/slskd"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestDaemon(t *testing.T, interval time.Duration) (*Daemon, *fixture) {
	t.Helper()
	f := newFixture(t)
	d, err := New(f.monitor, &Config{PollInterval: interval}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, f
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Error("expected error for nil monitor")
	}
	f := newFixture(t)
	if _, err := New(f.monitor, &Config{PollInterval: 0}, nil); err == nil {
		t.Error("expected error for zero interval")
	}
	d, err := New(f.monitor, nil, nil)
	if err != nil {
		t.Fatalf("New with defaults: %v", err)
	}
	if d.cfg.PollInterval != DefaultConfig().PollInterval {
		t.Errorf("poll interval = %s", d.cfg.PollInterval)
	}
}

func TestDaemon_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, f := newTestDaemon(t, 10*time.Millisecond)
	f.store.RegisterDownload("alice:song.mp3", "u1", "c1", "song.mp3", "song.mp3", "")
	f.transfers.set([]slskd.TransferUser{user("alice", transfer("song.mp3", "InProgress"))})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.IsRunning() {
		t.Error("expected daemon to be running")
	}
	if err := d.Start(context.Background()); err == nil {
		t.Error("expected error starting twice")
	}

	waitFor(t, func() bool { return f.transfers.callCount() >= 3 })

	d.Stop()
	d.Stop()
	if d.IsRunning() {
		t.Error("expected daemon to be stopped")
	}
	if d.Status().Passes < 3 {
		t.Errorf("passes = %d", d.Status().Passes)
	}
}

func TestDaemon_InitialPassRunsImmediately(t *testing.T) {
	d, f := newTestDaemon(t, time.Hour)
	f.store.RegisterDownload("alice:song.mp3", "u1", "c1", "song.mp3", "song.mp3", "")
	f.transfers.set([]slskd.TransferUser{user("alice", transfer("song.mp3", "Completed, Succeeded"))})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	waitFor(t, func() bool { return len(f.sink.messages()) == 1 })
	waitFor(t, func() bool { return d.Status().TotalCompleted == 1 })
}

func TestDaemon_ContextCancelStopsLoop(t *testing.T) {
	d, f := newTestDaemon(t, 5*time.Millisecond)
	f.store.RegisterDownload("alice:song.mp3", "u1", "c1", "song.mp3", "song.mp3", "")
	f.transfers.set([]slskd.TransferUser{user("alice", transfer("song.mp3", "InProgress"))})

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return f.transfers.callCount() >= 1 })
	cancel()

	// Stop still waits for the goroutine to exit cleanly.
	d.Stop()
}

func TestDaemon_RestartAfterStop(t *testing.T) {
	d, _ := newTestDaemon(t, time.Hour)
	for i := 0; i < 2; i++ {
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("Start #%d: %v", i+1, err)
		}
		d.Stop()
	}
}

func TestDaemon_RunOnceCountsTotals(t *testing.T) {
	d, f := newTestDaemon(t, time.Hour)
	f.store.RegisterDownload("alice:a.mp3", "u1", "c1", "a.mp3", "a.mp3", "")
	f.store.RegisterDownload("alice:b.mp3", "u1", "c1", "b.mp3", "b.mp3", "")
	f.transfers.set([]slskd.TransferUser{user("alice", transfer("a.mp3", "Completed, Succeeded"))})

	res := d.RunOnce(context.Background())

	if res.Completed != 1 || res.Vanished != 1 {
		t.Fatalf("result %+v", res)
	}
	st := d.Status()
	if st.Passes != 1 || st.TotalCompleted != 1 || st.TotalVanished != 1 || st.TotalScans != 1 {
		t.Errorf("status %+v", st)
	}
	if st.LastPass.IsZero() {
		t.Error("last pass time not recorded")
	}
}

var _ notify.Sink = (*fakeSink)(nil)
