package logger

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var Log *slog.Logger

// Audit is an optional dedicated audit logger. Callers may use
// logger.Audit.Info(...) to emit audit records; if nil, audit events
// should fall back to the main logger.
var Audit *slog.Logger

type asyncWriter struct {
	ch chan []byte
}

func (a *asyncWriter) Write(p []byte) (n int, err error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case a.ch <- cp:
		return len(p), nil
	default:
		// drop if queue full to avoid blocking
		return len(p), nil
	}
}

var logCh chan []byte
var logStopCh chan struct{}
var logWG sync.WaitGroup

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the global slog logger with an async buffered text
// handler. Sink and level can be overridden via CHATSHARD_LOG_SINK
// (e.g. "file:/path/to/log") and CHATSHARD_LOG_LEVEL.
func Init() {
	InitWithLevel(os.Getenv("CHATSHARD_LOG_LEVEL"))
}

// InitWithLevel initializes the global logger honoring the provided
// level string ("debug", "info", "warn", "error"). An empty level falls
// back to the CHATSHARD_LOG_LEVEL environment variable.
func InitWithLevel(level string) {
	sink := os.Getenv("CHATSHARD_LOG_SINK")
	if strings.TrimSpace(level) == "" {
		level = os.Getenv("CHATSHARD_LOG_LEVEL")
	}

	logCh = make(chan []byte, 10000)
	logStopCh = make(chan struct{})
	aw := &asyncWriter{ch: logCh}
	Log = slog.New(slog.NewTextHandler(aw, &slog.HandlerOptions{Level: parseLevel(level)}))

	logWG.Add(1)
	go func() {
		defer logWG.Done()
		var buf *bufio.Writer
		var f *os.File
		if strings.HasPrefix(sink, "file:") {
			path := strings.TrimPrefix(sink, "file:")
			var err error
			f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
				buf = bufio.NewWriterSize(os.Stdout, 8192)
			} else {
				buf = bufio.NewWriterSize(f, 8192)
			}
		} else {
			buf = bufio.NewWriterSize(os.Stdout, 8192)
		}
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case b := <-logCh:
				buf.Write(b)
			case <-ticker.C:
				buf.Flush()
			case <-logStopCh:
				for {
					select {
					case b := <-logCh:
						buf.Write(b)
					default:
						buf.Flush()
						if f != nil {
							f.Close()
						}
						return
					}
				}
			}
		}
	}()
}

// AttachAuditFileSink configures a JSON-file audit logger writing to
// <auditDir>/audit.log. If the file cannot be opened the function
// returns an error and leaves Audit as nil.
func AttachAuditFileSink(auditDir string) error {
	if auditDir == "" {
		return fmt.Errorf("empty audit dir")
	}
	// If the path exists and is a symlink, fail early to avoid TOCTOU.
	if fi, err := os.Lstat(auditDir); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("audit path is a symlink: %s", auditDir)
		}
		if !fi.IsDir() {
			return fmt.Errorf("audit path exists and is not a directory: %s", auditDir)
		}
	}
	if err := os.MkdirAll(auditDir, 0o700); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	if fi2, err := os.Lstat(auditDir); err == nil {
		if fi2.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("audit path is a symlink after creation: %s", auditDir)
		}
	}

	fname := filepath.Join(auditDir, "audit.log")
	// If existing file too large, rotate it.
	if fi, err := os.Stat(fname); err == nil {
		const maxSize = 10 * 1024 * 1024 // 10MB
		if fi.Size() > maxSize {
			bak := fname + "." + fi.ModTime().UTC().Format("20060102T150405Z")
			_ = os.Rename(fname, bak)
		}
	}
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	h := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})
	Audit = slog.New(h)
	Audit.Info("audit_sink_attached", "path", fname)
	return nil
}

// Sync flushes any buffered logs.
func Sync() {
	if logStopCh != nil {
		close(logStopCh)
		logWG.Wait()
		logStopCh = nil
	}
}

// Debug logs with slog-style key/value pairs.
func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

// Info logs with slog-style key/value pairs.
func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

// Warn logs with slog-style key/value pairs.
func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

// Error logs with slog-style key/value pairs.
func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}
