package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Environment variables that configure the log destination and threshold.
const (
	envLogPath  = "KVD_LOG"
	envLogLevel = "KVD_LOG_LEVEL"
)

// Level orders log severities; messages below the current level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel maps a level name to a Level. Unknown names fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	mu       sync.Mutex
	std      *log.Logger
	logFile  *os.File
	minLevel = LevelInfo
	// fallback marks std as the implicit stderr logger, which Init replaces.
	fallback bool
)

// InitFromEnv initializes the logger using KVD_LOG or a default path.
// KVD_LOG set to "-" or "stderr" sends output to stderr.
func InitFromEnv() error {
	if lvl := os.Getenv(envLogLevel); lvl != "" {
		SetLevel(ParseLevel(lvl))
	}
	path := os.Getenv(envLogPath)
	if path == "" {
		if exePath, err := os.Executable(); err == nil {
			path = filepath.Join(filepath.Dir(exePath), "kvd.log")
		} else {
			path = "./kvd.log"
		}
	}
	if path == "-" || path == "stderr" {
		InitWriter(os.Stderr)
		return nil
	}
	return Init(path)
}

// Init initializes the logger to write to the provided file path.
// It creates parent directories if needed and opens the file in append mode.
// Calling Init again after a successful initialization is a no-op. Output
// logged before the first Init went to stderr.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if std != nil && !fallback {
		return nil
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	std = newStd(f)
	fallback = false
	return nil
}

// InitWriter points the logger at w, replacing any previous destination.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	closeFileLocked()
	std = newStd(w)
	fallback = false
}

// SetLevel sets the minimum level that is written.
func SetLevel(l Level) {
	mu.Lock()
	minLevel = l
	mu.Unlock()
}

// Close closes the underlying log file, if open, and resets the logger.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	err := closeFileLocked()
	std = nil
	fallback = false
	return err
}

// Debugf logs diagnostic messages.
func Debugf(format string, args ...any) { write(LevelDebug, format, args...) }

// Infof logs informational messages.
func Infof(format string, args ...any) { write(LevelInfo, format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { write(LevelWarn, format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { write(LevelError, format, args...) }

func write(level Level, format string, args ...any) {
	mu.Lock()
	l, lvl := std, minLevel
	mu.Unlock()
	if level < lvl {
		return
	}
	if l == nil {
		// Nothing configured yet: stderr keeps messages visible without
		// creating files as a side effect of logging.
		mu.Lock()
		if std == nil {
			std = newStd(os.Stderr)
			fallback = true
		}
		l = std
		mu.Unlock()
	}
	l.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

func newStd(w io.Writer) *log.Logger {
	return log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

func closeFileLocked() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
