package results

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/slskdbot/slskd-bot/internal/slskd"
)

func group(peer string, token int64, files ...string) slskd.SearchResponse {
	g := slskd.SearchResponse{Username: peer, Token: token, UploadSpeed: 1536, HasFreeUploadSlot: true}
	for i, f := range files {
		g.Files = append(g.Files, slskd.File{Filename: f, Size: int64(i+1) << 20})
	}
	return g
}

func describe(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		if it.Kind == KindFolder {
			out[i] = it.Path + "(folder)"
		} else {
			out[i] = it.Path
		}
	}
	return out
}

func TestAggregateOrdering(t *testing.T) {
	items := Aggregate([]slskd.SearchResponse{
		group("alice", 1, "B.mp3", "A/2.mp3", "A/1.mp3"),
	})

	got := describe(items)
	want := []string{"A/1.mp3", "A/2.mp3", "A(folder)", "B.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestAggregateNestedFolders(t *testing.T) {
	items := Aggregate([]slskd.SearchResponse{
		group("alice", 1, `Music\Album\CD2\01.flac`, `Music\Album\01.flac`, `Music\Album\CD1\01.flac`, `Music\Album2\x.flac`),
	})

	got := describe(items)
	want := []string{
		`Music\Album\01.flac`,
		`Music\Album\CD1\01.flac`,
		"Music/Album/CD1(folder)",
		`Music\Album\CD2\01.flac`,
		"Music/Album/CD2(folder)",
		"Music/Album(folder)",
		`Music\Album2\x.flac`,
		"Music/Album2(folder)",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order =\n%v\nwant\n%v", got, want)
	}
}

func TestAggregateItemFields(t *testing.T) {
	g := slskd.SearchResponse{
		Username: "alice", Token: 7, HasFreeUploadSlot: true, UploadSpeed: 3000,
		Files: []slskd.File{
			{Filename: `Music\Album\01.flac`, Size: 1572864},
			{Filename: `Music\Album\02.flac`, Size: 524288},
		},
	}
	items := Aggregate([]slskd.SearchResponse{g})
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}

	file := items[0]
	if file.Kind != KindFile || file.Name != "01.flac" || file.Depth != 2 {
		t.Errorf("unexpected file item %+v", file)
	}
	if file.SizeMB != 1.5 || file.SizeBytes != 1572864 || file.SpeedKB != 2.93 {
		t.Errorf("sizes: SizeMB=%v SizeBytes=%v SpeedKB=%v", file.SizeMB, file.SizeBytes, file.SpeedKB)
	}
	if file.File.Filename != `Music\Album\01.flac` || file.Peer != "alice" || file.Token != 7 || !file.FreeSlot {
		t.Errorf("unexpected file descriptor %+v", file)
	}

	folder := items[2]
	if folder.Kind != KindFolder || folder.Path != "Music/Album" || folder.Name != "Album" || folder.Depth != 1 {
		t.Errorf("unexpected folder item %+v", folder)
	}
	if folder.FileCount != 2 || folder.TotalBytes != 2097152 || folder.SizeMB != 2 {
		t.Errorf("folder totals: count=%d bytes=%d mb=%v", folder.FileCount, folder.TotalBytes, folder.SizeMB)
	}
	if len(folder.Descriptors()) != 2 || folder.Descriptors()[1].Filename != `Music\Album\02.flac` {
		t.Errorf("folder descriptors %+v", folder.Descriptors())
	}
	if d := file.Descriptors(); len(d) != 1 || d[0].Filename != file.Path {
		t.Errorf("file descriptors %+v", d)
	}
}

func TestAggregateSkipsMalformedGroups(t *testing.T) {
	items := Aggregate([]slskd.SearchResponse{
		group("", 1, "a.mp3"),
		group("bob", 0, "b.mp3"),
		{Username: "carol", Token: 3},
		group("dave", 4, "root.mp3"),
	})

	if len(items) != 1 || items[0].Peer != "dave" || items[0].Kind != KindFile {
		t.Errorf("unexpected items %v", describe(items))
	}
}

func TestAggregateTieBreaksArePeerThenToken(t *testing.T) {
	items := Aggregate([]slskd.SearchResponse{
		group("zed", 2, "same.mp3"),
		group("amy", 9, "same.mp3"),
		group("amy", 3, "same.mp3"),
	})

	var got []string
	for _, it := range items {
		got = append(got, fmt.Sprintf("%s/%d", it.Peer, it.Token))
	}
	want := []string{"amy/3", "amy/9", "zed/2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tie order = %v, want %v", got, want)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	groups := []slskd.SearchResponse{
		group("alice", 1, "X/b.mp3", "X/a.mp3", "c.mp3"),
		group("bob", 2, "X/a.mp3", "Y/z.mp3"),
	}
	first := describe(Aggregate(groups))
	for i := 0; i < 20; i++ {
		if got := describe(Aggregate(groups)); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindFile.String() != "file" || KindFolder.String() != "folder" || Kind(9).String() != "unknown" {
		t.Error("unexpected Kind strings")
	}
}
