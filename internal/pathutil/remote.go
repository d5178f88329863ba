// Package pathutil handles path strings for slskd-bot.
//
// Remote paths reported by Soulseek peers mix Windows and Unix separators
// ("Music\Artist\01 - Song.mp3"), so everything that compares or displays a
// remote path goes through Normalize first. None of these helpers fail: empty
// input produces empty output.
package pathutil

import "strings"

// Normalize converts backslashes to forward slashes and strips trailing slashes.
func Normalize(path string) string {
	if path == "" {
		return ""
	}
	p := strings.ReplaceAll(path, "\\", "/")
	return strings.TrimRight(p, "/")
}

// Segments returns the non-empty segments of the normalized path.
func Segments(path string) []string {
	p := Normalize(path)
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	segs := parts[:0]
	for _, part := range parts {
		if part != "" {
			segs = append(segs, part)
		}
	}
	return segs
}

// Base returns the last segment of the path, or "" for an empty path.
func Base(path string) string {
	segs := Segments(path)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Dir returns every segment but the last joined with "/". A single-segment
// path has no directory and yields "".
func Dir(path string) string {
	segs := Segments(path)
	if len(segs) <= 1 {
		return ""
	}
	return strings.Join(segs[:len(segs)-1], "/")
}
