// Package report durably records every renewal attempt in an append-only
// JSONL log and keeps an in-memory view for the monitoring surface.
// Records are immutable once written; the log is the audit trail for
// backoff decisions and the history command.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ksyq12/certd/internal/config"
	"github.com/ksyq12/certd/internal/errors"
)

// Attempt outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeReloadFailed = "reload_failed"
)

// Attempt is one recorded renewal attempt. Immutable once recorded.
type Attempt struct {
	ID         string    `json:"id"`
	Domains    []string  `json:"domains"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    string    `json:"outcome"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	CertURL    string    `json:"cert_url,omitempty"`
	CertExpiry time.Time `json:"cert_expiry,omitempty"`
}

// Key returns the attempt's domain set key.
func (a Attempt) Key() string {
	return config.SetKey(a.Domains)
}

// Reporter appends attempts to the log file and answers monitoring
// queries. Safe for concurrent use by the scheduler's attempt goroutines.
type Reporter struct {
	mu      sync.Mutex
	path    string
	lastSet map[string]Attempt
}

// Open creates a Reporter writing to path, creating the parent directory
// as needed.
func Open(path string) (*Reporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(errors.CodeState, "create attempt log directory", err)
	}
	return &Reporter{path: path, lastSet: make(map[string]Attempt)}, nil
}

// Record appends the attempt to the log. An empty ID is assigned a fresh
// UUID. The write is a single O_APPEND line, so concurrent recorders
// never interleave within a record.
func (r *Reporter) Record(a Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	line, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(errors.CodeState, "marshal attempt record", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return errors.Wrap(errors.CodeState, fmt.Sprintf("open attempt log %s", r.path), err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return errors.Wrap(errors.CodeState, "append attempt record", err)
	}

	r.lastSet[a.Key()] = a
	return nil
}

// Last returns the most recent attempt recorded for the domain set in
// this process, if any.
func (r *Reporter) Last(key string) (Attempt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.lastSet[key]
	return a, ok
}

// LastFailure returns the most recent attempt for the set when it was not
// a success.
func (r *Reporter) LastFailure(key string) (Attempt, bool) {
	a, ok := r.Last(key)
	if !ok || a.Outcome == OutcomeSuccess {
		return Attempt{}, false
	}
	return a, true
}

// ReadRecent returns up to n of the newest attempts from the log file,
// oldest first. Unparsable lines are skipped rather than failing the
// whole read; the log may span daemon versions.
func ReadRecent(path string, n int) ([]Attempt, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeState, fmt.Sprintf("open attempt log %s", path), err)
	}
	defer f.Close()

	var attempts []Attempt
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var a Attempt
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			continue
		}
		attempts = append(attempts, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.CodeState, "read attempt log", err)
	}

	if n > 0 && len(attempts) > n {
		attempts = attempts[len(attempts)-n:]
	}
	return attempts, nil
}
