package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// CallEntry records the outcome of one call. It never carries the payload,
// the container or the password.
type CallEntry struct {
	Timestamp       string `json:"timestamp"`
	CallID          string `json:"callId"`
	Method          string `json:"method"`
	OK              bool   `json:"ok"`
	ErrorKind       string `json:"errorKind,omitempty"`
	Error           string `json:"error,omitempty"`
	CertFingerprint string `json:"certFingerprint,omitempty"`
}

type AuditLogger struct {
	mu       sync.Mutex
	filePath string
	now      func() time.Time
}

func NewAuditLogger(dir string) (*AuditLogger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &AuditLogger{
		filePath: filepath.Join(dir, "audit.jsonl"),
		now:      time.Now,
	}, nil
}

// Path returns the JSON-lines file entries are appended to.
func (l *AuditLogger) Path() string {
	return l.filePath
}

func (l *AuditLogger) Log(entry CallEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Timestamp = l.now().UTC().Format(time.RFC3339)
	log.Debug().
		Str("call_id", entry.CallID).
		Str("method", entry.Method).
		Bool("ok", entry.OK).
		Msg("audit log entry")

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	f, err := os.OpenFile(l.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	return nil
}

// ReadAll returns every decodable entry in file order. Lines that fail to
// decode, such as a torn final write, are skipped.
func (l *AuditLogger) ReadAll() ([]CallEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []CallEntry{}, nil
		}
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	var entries []CallEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry CallEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			log.Debug().Err(err).Msg("skipping undecodable audit line")
			continue
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("failed to read audit file: %w", err)
	}
	return entries, nil
}
