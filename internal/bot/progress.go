package bot

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/slskdbot/slskd-bot/internal/pathutil"
)

const barCells = 10

// TransferProgress is one incoming transfer as shown by the progress command.
type TransferProgress struct {
	Peer     string
	Filename string
	State    string
	Percent  float64
	Size     int64
	Speed    float64
}

// Progress lists incoming transfers ordered by peer then filename.
func (s *Service) Progress(ctx context.Context) ([]TransferProgress, error) {
	users, err := s.transfers.ListDownloads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}

	var out []TransferProgress
	for _, u := range users {
		for _, dir := range u.Directories {
			for _, t := range dir.Files {
				if !t.IsDownload() {
					continue
				}
				state := t.State
				if state == "" {
					state = "Unknown"
				}
				out = append(out, TransferProgress{
					Peer:     u.Username,
					Filename: pathutil.Base(t.Filename),
					State:    state,
					Percent:  clampPercent(t.PercentComplete),
					Size:     t.Size,
					Speed:    t.AverageSpeed,
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Peer != out[j].Peer {
			return out[i].Peer < out[j].Peer
		}
		return out[i].Filename < out[j].Filename
	})
	return out, nil
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ProgressBar renders percent as a fixed-width bar of filled and empty cells.
func ProgressBar(percent float64, filled, empty string) string {
	n := int(clampPercent(percent) / 10)
	if n > barCells {
		n = barCells
	}
	return strings.Repeat(filled, n) + strings.Repeat(empty, barCells-n)
}
