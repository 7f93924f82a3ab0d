package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLogPath is used when LOG_PATH is not set.
const DefaultLogPath = "logs/photo-qc.log"

// LogWriter receives application, gin, goose and gorm output.
var LogWriter io.Writer = os.Stdout

// LogFilePath resolves the log file location from LOG_PATH.
func LogFilePath() string {
	if path := strings.TrimSpace(os.Getenv("LOG_PATH")); path != "" {
		return filepath.Clean(path)
	}
	return filepath.FromSlash(DefaultLogPath)
}

// InitLogging tees the standard logger into the log file. When the file
// cannot be opened the logger stays on stdout and the error is returned.
func InitLogging() (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	path := LogFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		LogWriter = os.Stdout
		log.SetOutput(LogWriter)
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		LogWriter = os.Stdout
		log.SetOutput(LogWriter)
		return nil, fmt.Errorf("open log file: %w", err)
	}

	LogWriter = io.MultiWriter(os.Stdout, file)
	log.SetOutput(LogWriter)
	return file, nil
}
