package logging

import (
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileWriter is a size-rotated log file.
type FileWriter struct {
	*lumberjack.Logger
}

// NewFileWriter opens (lazily) a rotated log file at path. Rotation keeps five
// compressed backups of 10 MB each for up to 30 days.
func NewFileWriter(path string) *FileWriter {
	_ = os.MkdirAll(filepath.Dir(path), 0700)
	return &FileWriter{
		Logger: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		},
	}
}
