// Package store holds the authoritative collection of managed
// certificates. All mutation funnels through the scheduler; monitoring
// reads get copied snapshots so they never block the renewal loop.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ksyq12/certd/internal/config"
	"github.com/ksyq12/certd/internal/errors"
	"github.com/ksyq12/certd/internal/logger"
	"github.com/ksyq12/certd/internal/pki"
)

// Certificate file names inside a domain set's directory.
const (
	CertFile  = "cert.pem"
	KeyFile   = "key.pem"
	ChainFile = "chain.pem"
)

// ManagedCertificate tracks one domain set's certificate lifecycle.
// Created when the set is onboarded, mutated on every renewal attempt,
// removed only by explicit decommissioning.
type ManagedCertificate struct {
	Domains   []string `yaml:"domains"`
	CertPath  string   `yaml:"cert_path"`
	KeyPath   string   `yaml:"key_path"`
	ChainPath string   `yaml:"chain_path"`

	IssuedAt  time.Time `yaml:"issued_at,omitempty"`
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`

	// Attempts counts failed renewals since the last success.
	Attempts      int       `yaml:"attempts"`
	LastError     string    `yaml:"last_error,omitempty"`
	LastErrorCode string    `yaml:"last_error_code,omitempty"`
	LastAttemptAt time.Time `yaml:"last_attempt_at,omitempty"`
	NextAttemptAt time.Time `yaml:"next_attempt_at,omitempty"`
	Degraded      bool      `yaml:"degraded"`

	inFlight bool
}

// Key returns the canonical domain set key.
func (m *ManagedCertificate) Key() string {
	return config.SetKey(m.Domains)
}

// Primary returns the set's primary domain.
func (m *ManagedCertificate) Primary() string {
	if len(m.Domains) == 0 {
		return ""
	}
	return m.Domains[0]
}

// Installed reports whether a certificate has ever been installed.
func (m *ManagedCertificate) Installed() bool {
	return !m.ExpiresAt.IsZero()
}

// Due reports whether the certificate needs renewal at now: never
// installed, or inside the renewal window.
func (m *ManagedCertificate) Due(now time.Time, window time.Duration) bool {
	if !m.Installed() {
		return true
	}
	return m.ExpiresAt.Sub(now) <= window
}

func (m *ManagedCertificate) clone() ManagedCertificate {
	out := *m
	out.Domains = append([]string(nil), m.Domains...)
	return out
}

// Store is the authoritative collection of ManagedCertificate records,
// keyed by domain set, persisted to a YAML state file.
type Store struct {
	mu     sync.RWMutex
	saveMu sync.Mutex
	path   string
	certs  map[string]*ManagedCertificate
}

type stateFile struct {
	Certificates []*ManagedCertificate `yaml:"certificates"`
}

// Open loads the store from the state file, or returns an empty store
// when the file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, certs: make(map[string]*ManagedCertificate)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeState, fmt.Sprintf("read state file %s", path), err)
	}

	var state stateFile
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(errors.CodeState, fmt.Sprintf("parse state file %s", path), err)
	}

	for _, rec := range state.Certificates {
		if len(rec.Domains) == 0 {
			continue
		}
		s.certs[rec.Key()] = rec
	}
	return s, nil
}

// Save persists a snapshot of the store to the state file. The write goes
// through a temp file and rename so a crash never leaves a torn state file.
// Save is safe to call from concurrent attempt goroutines.
func (s *Store) Save() error {
	// All saves share one temp path; the write and rename must not
	// interleave with another save's.
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	state := stateFile{Certificates: make([]*ManagedCertificate, 0, len(s.certs))}
	for _, rec := range s.certs {
		c := rec.clone()
		state.Certificates = append(state.Certificates, &c)
	}
	s.mu.RUnlock()

	sort.Slice(state.Certificates, func(i, j int) bool {
		return state.Certificates[i].Key() < state.Certificates[j].Key()
	})

	data, err := yaml.Marshal(&state)
	if err != nil {
		return errors.Wrap(errors.CodeState, "marshal state", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrap(errors.CodeState, "create state directory", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrap(errors.CodeState, "write state file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.CodeState, "replace state file", err)
	}
	return nil
}

// SyncSites reconciles the store with the configured sites: new sites get
// fresh records, sites removed from the config are decommissioned. File
// paths are (re)derived from certDir for every record.
func (s *Store) SyncSites(sites []config.Site, certDir string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]config.Site, len(sites))
	for _, site := range sites {
		want[site.Key()] = site
	}

	for key := range s.certs {
		if _, ok := want[key]; !ok {
			logger.Info("decommissioning domain set %s", key)
			delete(s.certs, key)
		}
	}

	for key, site := range want {
		dir := filepath.Join(certDir, site.Primary())
		if rec, ok := s.certs[key]; ok {
			rec.CertPath = filepath.Join(dir, CertFile)
			rec.KeyPath = filepath.Join(dir, KeyFile)
			rec.ChainPath = filepath.Join(dir, ChainFile)
			continue
		}
		logger.Info("onboarding domain set %s", key)
		s.certs[key] = &ManagedCertificate{
			Domains:   append([]string(nil), site.Domains...),
			CertPath:  filepath.Join(dir, CertFile),
			KeyPath:   filepath.Join(dir, KeyFile),
			ChainPath: filepath.Join(dir, ChainFile),
		}
	}
}

// RefreshFromDisk re-derives expiry metadata from the installed
// certificate files. A missing, unparsable, or mismatched pair clears the
// expiry so the set becomes due immediately; that is the recovery path for
// an installation interrupted between renames.
func (s *Store) RefreshFromDisk() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, rec := range s.certs {
		certPEM, certErr := os.ReadFile(rec.CertPath)
		keyPEM, keyErr := os.ReadFile(rec.KeyPath)

		if certErr != nil || keyErr != nil {
			if rec.Installed() {
				logger.Warn("certificate files missing for %s, forcing renewal", key)
			}
			rec.ExpiresAt = time.Time{}
			rec.IssuedAt = time.Time{}
			continue
		}

		if !pki.PairMatches(certPEM, keyPEM) {
			logger.Warn("certificate/key mismatch on disk for %s, forcing renewal", key)
			rec.ExpiresAt = time.Time{}
			rec.IssuedAt = time.Time{}
			continue
		}

		leaf, err := pki.ParseLeaf(certPEM)
		if err != nil {
			logger.Warn("unreadable certificate for %s: %v", key, err)
			rec.ExpiresAt = time.Time{}
			rec.IssuedAt = time.Time{}
			continue
		}

		rec.ExpiresAt = leaf.NotAfter
		rec.IssuedAt = leaf.NotBefore
	}
}

// Get returns a copy of the record for the domain set key.
func (s *Store) Get(key string) (ManagedCertificate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.certs[key]
	if !ok {
		return ManagedCertificate{}, false
	}
	return rec.clone(), true
}

// Snapshot returns copies of all records, sorted by set key. Callers can
// inspect it without holding up the scheduler.
func (s *Store) Snapshot() []ManagedCertificate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ManagedCertificate, 0, len(s.certs))
	for _, rec := range s.certs {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Remove decommissions a domain set.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.certs[key]; !ok {
		return false
	}
	delete(s.certs, key)
	return true
}

// TryBegin marks the domain set as having an attempt in flight. It
// returns false when the set is unknown or an attempt is already running,
// guaranteeing that renewals for one set never overlap.
func (s *Store) TryBegin(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.certs[key]
	if !ok || rec.inFlight {
		return false
	}
	rec.inFlight = true
	return true
}

// End clears the in-flight marker for the domain set.
func (s *Store) End(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.certs[key]; ok {
		rec.inFlight = false
	}
}

// InFlight reports whether an attempt is currently running for the set.
func (s *Store) InFlight(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.certs[key]
	return ok && rec.inFlight
}

// RecordSuccess resets the failure state after a completed installation
// and stores the new certificate's validity interval.
func (s *Store) RecordSuccess(key string, attemptAt, issuedAt, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.certs[key]
	if !ok {
		return
	}
	rec.IssuedAt = issuedAt
	rec.ExpiresAt = expiresAt
	rec.Attempts = 0
	rec.LastError = ""
	rec.LastErrorCode = ""
	rec.LastAttemptAt = attemptAt
	rec.NextAttemptAt = time.Time{}
	rec.Degraded = false
}

// RecordFailure increments the attempt counter, stores the failure, and
// schedules the next attempt. Degraded is set once the caller's escalation
// policy says so; a degraded set keeps its retry schedule, only slower.
func (s *Store) RecordFailure(key string, code errors.ErrorCode, message string, attemptAt, nextAttempt time.Time, degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.certs[key]
	if !ok {
		return
	}
	rec.Attempts++
	rec.LastError = message
	rec.LastErrorCode = string(code)
	rec.LastAttemptAt = attemptAt
	rec.NextAttemptAt = nextAttempt
	rec.Degraded = degraded
}

// NoteReloadFailure records a reload problem without touching the renewal
// schedule: the certificate itself is installed and valid.
func (s *Store) NoteReloadFailure(key, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.certs[key]
	if !ok {
		return
	}
	rec.LastError = message
	rec.LastErrorCode = string(errors.CodeReload)
}

// DegradedCount returns the number of sets marked degraded.
func (s *Store) DegradedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.certs {
		if rec.Degraded {
			n++
		}
	}
	return n
}

// Len returns the number of managed domain sets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.certs)
}
