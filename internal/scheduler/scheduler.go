// Package scheduler drives the renewal loop: it decides which managed
// certificates are due, runs attempts with bounded concurrency, and owns
// the whole retry policy. The ACME client performs exactly one order per
// call; backoff, escalation, and scheduling live here and nowhere else.
package scheduler

import (
	"context"
	"math/rand"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ksyq12/certd/internal/acme"
	"github.com/ksyq12/certd/internal/config"
	"github.com/ksyq12/certd/internal/errors"
	"github.com/ksyq12/certd/internal/logger"
	"github.com/ksyq12/certd/internal/pki"
	"github.com/ksyq12/certd/internal/report"
	"github.com/ksyq12/certd/internal/store"
)

// Installer swaps certificate files on disk for one domain set.
type Installer interface {
	Install(dir string, issued *acme.IssuedCertificate) error
}

// Reloader signals the web server after an installation.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Recorder persists renewal attempt records.
type Recorder interface {
	Record(report.Attempt) error
}

// Options tunes the renewal loop. Zero values are filled with safe
// defaults by New.
type Options struct {
	RenewalWindow  time.Duration
	Concurrency    int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	MaxAttempts    int
	CheckInterval  time.Duration
	CertDir        string
}

// OptionsFromConfig maps the daemon configuration onto scheduler options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RenewalWindow:  time.Duration(cfg.RenewalWindow) * 24 * time.Hour,
		Concurrency:    cfg.Concurrency,
		AttemptTimeout: cfg.AttemptTimeout.Std(),
		BackoffBase:    cfg.Backoff.Base.Std(),
		BackoffMax:     cfg.Backoff.Max.Std(),
		MaxAttempts:    cfg.Backoff.MaxAttempts,
		CheckInterval:  cfg.CheckInterval.Std(),
		CertDir:        cfg.CertDir,
	}
}

// Scheduler owns all mutation of the certificate store.
type Scheduler struct {
	store     *store.Store
	client    acme.Client
	installer Installer
	reloader  Reloader
	recorder  Recorder
	opts      Options

	// now and jitter are injectable so tests can simulate time and get
	// deterministic backoff delays.
	now    func() time.Time
	jitter func() float64

	sem chan struct{}
	wg  sync.WaitGroup
}

// New creates a Scheduler. All collaborators are required.
func New(st *store.Store, client acme.Client, installer Installer, reloader Reloader, recorder Recorder, opts Options) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.RenewalWindow <= 0 {
		opts.RenewalWindow = 30 * 24 * time.Hour
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 5 * time.Minute
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Minute
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = opts.BackoffBase
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 10
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Hour
	}

	return &Scheduler{
		store:     st,
		client:    client,
		installer: installer,
		reloader:  reloader,
		recorder:  recorder,
		opts:      opts,
		now:       time.Now,
		jitter:    rand.Float64,
		sem:       make(chan struct{}, opts.Concurrency),
	}
}

// Tick selects every certificate due for renewal at now and launches
// attempts for them, closest expiry first, up to the concurrency cap.
// It returns the number of attempts launched and never blocks on them.
func (s *Scheduler) Tick(now time.Time) int {
	due := make([]store.ManagedCertificate, 0)
	for _, rec := range s.store.Snapshot() {
		if s.store.InFlight(rec.Key()) {
			continue
		}
		if !rec.Due(now, s.opts.RenewalWindow) {
			continue
		}
		if !rec.NextAttemptAt.IsZero() && now.Before(rec.NextAttemptAt) {
			continue
		}
		due = append(due, rec)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ExpiresAt.Before(due[j].ExpiresAt)
	})

	launched := 0
	for _, rec := range due {
		select {
		case s.sem <- struct{}{}:
		default:
			// Concurrency cap reached; the rest waits for a later tick.
			return launched
		}

		if !s.store.TryBegin(rec.Key()) {
			<-s.sem
			continue
		}

		s.wg.Add(1)
		go s.attempt(rec.Key())
		launched++
	}
	return launched
}

// Run drives Tick on the configured cadence until ctx is cancelled, then
// waits for in-flight attempts to finish or hit their own timeouts.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("renewal scheduler started, interval %s, window %s",
		s.opts.CheckInterval, s.opts.RenewalWindow)

	s.Tick(s.now())

	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopping, waiting for in-flight attempts")
			s.wg.Wait()
			return
		case t := <-ticker.C:
			s.Tick(t)
		}
	}
}

// RunOnce performs a single synchronous pass: one tick, then wait for
// every launched attempt to finish. Used by the one-shot check command.
func (s *Scheduler) RunOnce() {
	s.Tick(s.now())
	s.wg.Wait()
}

// Wait blocks until all in-flight attempts have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// attempt runs one renewal for the domain set. The in-flight marker is
// already held; attempts deliberately run on their own deadline rather
// than the daemon's context, so shutdown never interrupts a file swap.
func (s *Scheduler) attempt(key string) {
	defer func() {
		s.store.End(key)
		<-s.sem
		s.wg.Done()
	}()

	rec, ok := s.store.Get(key)
	if !ok {
		return
	}

	start := s.now()
	// Re-check under the in-flight marker: another attempt may have
	// finished between the snapshot and TryBegin.
	if !rec.Due(start, s.opts.RenewalWindow) {
		return
	}
	if !rec.NextAttemptAt.IsZero() && start.Before(rec.NextAttemptAt) {
		return
	}

	logger.InfoFields("renewal attempt started", map[string]interface{}{
		"domains": key,
		"expires": rec.ExpiresAt.Format(time.RFC3339),
	})

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.AttemptTimeout)
	defer cancel()

	issued, err := s.client.Request(ctx, rec.Domains)
	if err != nil {
		s.fail(rec, start, err)
		return
	}

	leaf, err := pki.ParseLeaf(issued.Certificate)
	if err != nil {
		s.fail(rec, start, errors.WrapSet(errors.CodeInstall, key, "parse issued certificate", err))
		return
	}

	dir := filepath.Join(s.opts.CertDir, rec.Primary())
	if err := s.installer.Install(dir, issued); err != nil {
		s.fail(rec, start, err)
		return
	}

	s.store.RecordSuccess(key, start, leaf.NotBefore, leaf.NotAfter)

	attempt := report.Attempt{
		Domains:    rec.Domains,
		StartedAt:  start,
		FinishedAt: s.now(),
		Outcome:    report.OutcomeSuccess,
		CertURL:    issued.URL,
		CertExpiry: leaf.NotAfter,
	}

	// The reloader gets a fresh context: the renewal itself is done and
	// a slow order must not eat the reload's time budget.
	if rerr := s.reloader.Reload(context.Background()); rerr != nil {
		s.store.NoteReloadFailure(key, rerr.Error())
		attempt.Outcome = report.OutcomeReloadFailed
		attempt.ErrorCode = string(errors.CodeReload)
		attempt.Error = rerr.Error()
		attempt.FinishedAt = s.now()
		logger.WarnFields("certificate installed but reload failed", map[string]interface{}{
			"domains": key,
			"error":   rerr.Error(),
		})
	} else {
		logger.InfoFields("certificate renewed", map[string]interface{}{
			"domains": key,
			"expires": leaf.NotAfter.Format(time.RFC3339),
		})
	}

	s.record(attempt)
	s.persist()
}

// fail applies the retry policy to a failed attempt: install failures are
// retried on the next tick, ACME failures back off exponentially with
// full jitter, and the set is marked degraded once the escalation
// threshold is crossed. Degraded sets keep retrying at the backoff cap.
func (s *Scheduler) fail(rec store.ManagedCertificate, start time.Time, err error) {
	key := rec.Key()
	code := errors.CodeOf(err)
	attempts := rec.Attempts + 1

	now := s.now()
	var next time.Time
	if code == errors.CodeInstall {
		next = now
	} else {
		next = now.Add(s.backoffDelay(attempts))
	}

	degraded := attempts >= s.degradedThreshold(code)

	s.store.RecordFailure(key, code, err.Error(), now, next, degraded)
	s.record(report.Attempt{
		Domains:    rec.Domains,
		StartedAt:  start,
		FinishedAt: now,
		Outcome:    report.OutcomeFailure,
		ErrorCode:  string(code),
		Error:      err.Error(),
	})
	s.persist()

	fields := map[string]interface{}{
		"domains":  key,
		"code":     code,
		"attempts": attempts,
		"next":     next.Format(time.RFC3339),
		"error":    err.Error(),
	}
	if degraded {
		logger.ErrorFields("renewal degraded, needs manual intervention", fields)
	} else {
		logger.WarnFields("renewal attempt failed", fields)
	}
}

// backoffDelay returns the full-jitter exponential delay for the Nth
// consecutive failure: a uniform draw from [0, min(max, base*2^(N-1))].
func (s *Scheduler) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	envelope := s.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		envelope *= 2
		if envelope <= 0 || envelope >= s.opts.BackoffMax {
			envelope = s.opts.BackoffMax
			break
		}
	}
	if envelope > s.opts.BackoffMax {
		envelope = s.opts.BackoffMax
	}

	d := time.Duration(s.jitter() * float64(envelope))
	if d < 0 {
		d = 0
	}
	if d > envelope {
		d = envelope
	}
	return d
}

// degradedThreshold returns the failure count at which a set is marked
// degraded. CA rejections escalate at half the budget: retrying the same
// rejected order is unlikely to start succeeding.
func (s *Scheduler) degradedThreshold(code errors.ErrorCode) int {
	if code == errors.CodeAcmeRejected {
		t := (s.opts.MaxAttempts + 1) / 2
		if t < 1 {
			t = 1
		}
		return t
	}
	return s.opts.MaxAttempts
}

func (s *Scheduler) record(a report.Attempt) {
	if err := s.recorder.Record(a); err != nil {
		logger.LogError(err, "record renewal attempt")
	}
}

func (s *Scheduler) persist() {
	if err := s.store.Save(); err != nil {
		logger.LogError(err, "persist certificate state")
	}
}
