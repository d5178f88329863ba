// Package results turns slskd search responses into a sorted, paged list of
// downloadable files and folders.
package results

import (
	"math"
	"sort"

	"github.com/slskdbot/slskd-bot/internal/pathutil"
	"github.com/slskdbot/slskd-bot/internal/slskd"
)

// Kind distinguishes file items from folder items.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// Item is one selectable search result.
type Item struct {
	Kind Kind

	Peer        string
	Token       int64
	Path        string // remote path; the directory for folders
	Name        string // last path segment
	Depth       int
	FreeSlot    bool
	UploadSpeed int64
	SpeedKB     float64
	SizeMB      float64

	// KindFile
	SizeBytes int64
	File      slskd.File

	// KindFolder
	FileCount  int
	TotalBytes int64
	Files      []slskd.File

	segments []string
	seq      int
}

// Descriptors returns the file descriptors to enqueue for this item.
func (it Item) Descriptors() []slskd.File {
	switch it.Kind {
	case KindFolder:
		out := make([]slskd.File, len(it.Files))
		copy(out, it.Files)
		return out
	default:
		return []slskd.File{it.File}
	}
}

type folderAcc struct {
	files []slskd.File
	bytes int64
}

// Aggregate flattens search responses into file and folder items and sorts
// them. Responses without a username or token are skipped. Each response
// yields one folder item per distinct parent directory of its files; files at
// the root of a share yield none.
func Aggregate(groups []slskd.SearchResponse) []Item {
	var items []Item

	for _, g := range groups {
		if g.Username == "" || g.Token == 0 {
			continue
		}

		folders := make(map[string]*folderAcc)
		for _, f := range g.Files {
			items = append(items, newFileItem(g, f))

			dir := pathutil.Dir(f.Filename)
			if dir == "" {
				continue
			}
			acc, ok := folders[dir]
			if !ok {
				acc = &folderAcc{}
				folders[dir] = acc
			}
			acc.files = append(acc.files, f)
			acc.bytes += f.Size
		}

		dirs := make([]string, 0, len(folders))
		for dir := range folders {
			dirs = append(dirs, dir)
		}
		sort.Strings(dirs)
		for _, dir := range dirs {
			items = append(items, newFolderItem(g, dir, folders[dir]))
		}
	}

	for i := range items {
		items[i].seq = i
	}
	sort.SliceStable(items, func(i, j int) bool {
		return less(&items[i], &items[j])
	})
	return items
}

func newFileItem(g slskd.SearchResponse, f slskd.File) Item {
	segs := pathutil.Segments(f.Filename)
	return Item{
		Kind:        KindFile,
		Peer:        g.Username,
		Token:       g.Token,
		Path:        f.Filename,
		Name:        pathutil.Base(f.Filename),
		Depth:       depth(segs),
		FreeSlot:    g.HasFreeUploadSlot,
		UploadSpeed: g.UploadSpeed,
		SpeedKB:     round2(float64(g.UploadSpeed) / 1024),
		SizeMB:      toMB(f.Size),
		SizeBytes:   f.Size,
		File:        f,
		segments:    segs,
	}
}

func newFolderItem(g slskd.SearchResponse, dir string, acc *folderAcc) Item {
	segs := pathutil.Segments(dir)
	return Item{
		Kind:        KindFolder,
		Peer:        g.Username,
		Token:       g.Token,
		Path:        dir,
		Name:        pathutil.Base(dir),
		Depth:       depth(segs),
		FreeSlot:    g.HasFreeUploadSlot,
		UploadSpeed: g.UploadSpeed,
		SpeedKB:     round2(float64(g.UploadSpeed) / 1024),
		SizeMB:      toMB(acc.bytes),
		FileCount:   len(acc.files),
		TotalBytes:  acc.bytes,
		Files:       acc.files,
		segments:    segs,
	}
}

func depth(segs []string) int {
	if len(segs) == 0 {
		return 0
	}
	return len(segs) - 1
}

func toMB(b int64) float64 {
	return round2(float64(b) / (1 << 20))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// less orders by path segments, then kind (files first), then name, peer and
// token. A folder compares as if its path had one extra segment greater than
// any real one, so it follows everything inside it and precedes its next
// sibling.
func less(a, b *Item) bool {
	if c := compareSegments(a, b); c != 0 {
		return c < 0
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Peer != b.Peer {
		return a.Peer < b.Peer
	}
	if a.Token != b.Token {
		return a.Token < b.Token
	}
	return a.seq < b.seq
}

func compareSegments(a, b *Item) int {
	na, nb := sortLen(a), sortLen(b)
	for i := 0; i < na && i < nb; i++ {
		sa, aEnd := segmentAt(a, i)
		sb, bEnd := segmentAt(b, i)
		switch {
		case aEnd && bEnd:
			continue
		case aEnd:
			return 1
		case bEnd:
			return -1
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
	}
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	}
	return 0
}

func sortLen(it *Item) int {
	if it.Kind == KindFolder {
		return len(it.segments) + 1
	}
	return len(it.segments)
}

// segmentAt returns the i-th sort segment, reporting true for a folder's
// terminating sentinel.
func segmentAt(it *Item, i int) (string, bool) {
	if i == len(it.segments) {
		return "", true
	}
	return it.segments[i], false
}
