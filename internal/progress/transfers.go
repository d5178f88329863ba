package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/slskdbot/slskd-bot/internal/bot"
)

// TransferUI keeps one bar per incoming transfer, redrawn as snapshots of
// the transfer list arrive. Off a terminal it prints one line per change.
type TransferUI struct {
	out        io.Writer
	progress   *mpb.Progress
	isTerminal bool

	mu   sync.Mutex
	bars map[string]*transferBar
}

type transferBar struct {
	bar *mpb.Bar
	pct int64

	// state is read by the render goroutine.
	mu    sync.Mutex
	state string
}

func (tb *transferBar) setState(state string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.state = state
}

func (tb *transferBar) getState() string {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.state
}

// NewTransferUI creates a transfer view writing to out.
func NewTransferUI(out io.Writer) *TransferUI {
	u := &TransferUI{
		out:        out,
		isTerminal: IsTerminal(out),
		bars:       make(map[string]*transferBar),
	}
	if u.isTerminal {
		u.progress = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(60),
		)
	}
	return u
}

func barKey(t bot.TransferProgress) string {
	return t.Peer + ":" + t.Filename
}

// Update applies a snapshot of the transfer list. Transfers missing from the
// snapshot are dropped.
func (u *TransferUI) Update(transfers []bot.TransferProgress) {
	u.mu.Lock()
	defer u.mu.Unlock()

	seen := make(map[string]struct{}, len(transfers))
	for _, t := range transfers {
		key := barKey(t)
		seen[key] = struct{}{}
		pct := int64(t.Percent)

		tb, ok := u.bars[key]
		if !ok {
			tb = &transferBar{state: t.State}
			tb.bar = u.newBar(t, tb)
			u.bars[key] = tb
		} else if tb.pct == pct && tb.getState() == t.State {
			continue
		}
		tb.setState(t.State)
		tb.pct = pct

		if tb.bar != nil {
			tb.bar.SetCurrent(pct)
		} else {
			fmt.Fprintf(u.out, "%s (from %s) %s %s %5.1f%%\n",
				t.Filename, t.Peer, t.State, bot.ProgressBar(t.Percent, "#", "-"), t.Percent)
		}
	}

	for key, tb := range u.bars {
		if _, ok := seen[key]; ok {
			continue
		}
		if tb.bar != nil {
			tb.bar.Abort(true)
		}
		delete(u.bars, key)
	}
}

func (u *TransferUI) newBar(t bot.TransferProgress, tb *transferBar) *mpb.Bar {
	if !u.isTerminal {
		return nil
	}
	label := fmt.Sprintf("%s ← %s", t.Filename, t.Peer)
	return u.progress.New(100,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.Any(func(decor.Statistics) string {
				return tb.getState()
			}, decor.WCSyncSpace),
		),
	)
}

// Len returns the number of transfers shown.
func (u *TransferUI) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.bars)
}

// Writer returns a writer that prints above the bars.
func (u *TransferUI) Writer() io.Writer {
	if u.progress != nil {
		return u.progress
	}
	return u.out
}

// Close removes every bar and waits for the final render.
func (u *TransferUI) Close() {
	u.mu.Lock()
	for key, tb := range u.bars {
		if tb.bar != nil {
			tb.bar.Abort(true)
		}
		delete(u.bars, key)
	}
	u.mu.Unlock()

	if u.progress != nil {
		u.progress.Wait()
	}
}
