package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type fakeSink struct {
	userErr    error
	channelErr error
	sendErr    error
	sent       []string
}

func (f *fakeSink) ResolveUser(_ context.Context, id string) (User, error) {
	if f.userErr != nil {
		return User{}, f.userErr
	}
	return User{ID: id, Mention: "<@" + id + ">"}, nil
}

func (f *fakeSink) ResolveChannel(_ context.Context, id string) (Channel, error) {
	if f.channelErr != nil {
		return Channel{}, f.channelErr
	}
	return Channel{ID: id, Name: "music"}, nil
}

func (f *fakeSink) Send(_ context.Context, channelID, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, channelID+"|"+text)
	return nil
}

func TestDownloadComplete(t *testing.T) {
	sink := &fakeSink{}
	n := NewNotifier(sink, true, nil)

	r, err := n.Resolve(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := n.DownloadComplete(context.Background(), r, "song.mp3"); err != nil {
		t.Fatalf("DownloadComplete: %v", err)
	}
	if len(sink.sent) != 1 || sink.sent[0] != "c1|<@u1> Your download is complete: `song.mp3`" {
		t.Errorf("sent = %q", sink.sent)
	}
}

func TestFolderComplete(t *testing.T) {
	sink := &fakeSink{}
	n := NewNotifier(sink, true, nil)
	r := Recipient{User: User{ID: "u1"}, Channel: Channel{ID: "c1"}}

	_ = n.FolderComplete(context.Background(), r, "Album", 3)
	_ = n.FolderComplete(context.Background(), r, "Single", 1)

	want := []string{
		"c1|<@u1> Your folder download is complete: `Album` (3 files)",
		"c1|<@u1> Your folder download is complete: `Single` (1 file)",
	}
	for i := range want {
		if sink.sent[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, sink.sent[i], want[i])
		}
	}
}

func TestResolveFailures(t *testing.T) {
	boom := errors.New("404")

	n := NewNotifier(&fakeSink{userErr: boom}, true, nil)
	if _, err := n.Resolve(context.Background(), "u1", "c1"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("user failure: %v", err)
	}

	n = NewNotifier(&fakeSink{channelErr: boom}, true, nil)
	_, err := n.Resolve(context.Background(), "u1", "c1")
	if !errors.Is(err, ErrUnresolved) || !strings.Contains(err.Error(), "channel c1") {
		t.Errorf("channel failure: %v", err)
	}
}

func TestSendFailureIsReturned(t *testing.T) {
	boom := errors.New("rate limited")
	n := NewNotifier(&fakeSink{sendErr: boom}, true, nil)
	err := n.DownloadComplete(context.Background(), Recipient{Channel: Channel{ID: "c"}}, "x")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v", err)
	}
}

func TestDisabledNotifier(t *testing.T) {
	sink := &fakeSink{userErr: errors.New("unused")}
	n := NewNotifier(sink, false, nil)

	if _, err := n.Resolve(context.Background(), "u1", "c1"); err != nil {
		t.Errorf("disabled Resolve should not fail: %v", err)
	}
	if err := n.DownloadComplete(context.Background(), Recipient{}, "x"); err != nil {
		t.Errorf("disabled send: %v", err)
	}
	if len(sink.sent) != 0 {
		t.Error("disabled notifier sent a message")
	}

	if NewNotifier(nil, true, nil).IsEnabled() {
		t.Error("notifier without sink reports enabled")
	}

	n.SetEnabled(true)
	if !n.IsEnabled() {
		t.Error("SetEnabled(true) ignored")
	}
}

func TestMessageEscaping(t *testing.T) {
	msg := downloadMessage(User{ID: "9"}, "we`ird.mp3")
	if msg != "<@9> Your download is complete: `we'ird.mp3`" {
		t.Errorf("message = %q", msg)
	}

	long := strings.Repeat("a", 400)
	if got := quote(long); len(got) != maxNameLen || !strings.HasSuffix(got, "...") {
		t.Errorf("long name not truncated: %d", len(got))
	}
}

func TestQuoteKeepsUTF8Valid(t *testing.T) {
	name := strings.Repeat("é", 100) + ".flac"
	got := quote(name)
	if !utf8.ValidString(got) {
		t.Fatalf("quote produced invalid UTF-8: %q", got)
	}
	if len(got) > maxNameLen || !strings.HasSuffix(got, "é...") {
		t.Errorf("quote(%d bytes) = %q", len(name), got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a long string", 10, "this is..."},
		{"", 10, ""},
		{"ééééé", 8, "éé..."},
		{"aéééé", 8, "aéé..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}
