package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"sync"
)

// RawLog is a size-bounded append-only file the reader tees every framed
// sentence into, mirroring the original implementation's nmea_messages.log.
// It truncates itself once it crosses maxRawLogBytes so a long-running
// bridge never fills its disk.
type RawLog struct {
	mu   sync.Mutex
	path string
	file *os.File
	size int64
}

const maxRawLogBytes = 8 * 1024 * 1024

// OpenRawLog opens or creates the raw sentence log at path.
func OpenRawLog(path string) (*RawLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("httpapi: opening raw log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("httpapi: stat raw log %s: %w", path, err)
	}
	return &RawLog{path: path, file: f, size: info.Size()}, nil
}

func (l *RawLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.size+int64(len(p)) > maxRawLogBytes {
		if err := l.truncateLocked(); err != nil {
			return 0, err
		}
	}
	n, err := l.file.Write(p)
	l.size += int64(n)
	return n, err
}

func (l *RawLog) truncateLocked() error {
	if err := l.file.Truncate(0); err != nil {
		return err
	}
	if _, err := l.file.Seek(0, 0); err != nil {
		return err
	}
	l.size = 0
	return nil
}

func (l *RawLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func (s *Server) handleRawLogDownload(w http.ResponseWriter, r *http.Request) {
	if s.RawLog == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("httpapi: raw log not enabled"))
		return
	}
	http.ServeFile(w, r, s.RawLog.path)
}

func (s *Server) handleRawLogDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("httpapi: method %s not allowed", r.Method))
		return
	}
	if s.RawLog == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("httpapi: raw log not enabled"))
		return
	}
	s.RawLog.mu.Lock()
	err := s.RawLog.truncateLocked()
	s.RawLog.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
