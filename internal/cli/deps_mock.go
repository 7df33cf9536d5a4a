package cli

import (
	"sync"

	"github.com/ksyq12/certd/internal/acme"
	"github.com/ksyq12/certd/internal/config"
	"github.com/ksyq12/certd/internal/executor"
	"github.com/ksyq12/certd/internal/input"
	"github.com/ksyq12/certd/internal/report"
	"github.com/ksyq12/certd/internal/scheduler"
	"github.com/ksyq12/certd/internal/store"
)

// MockConfigLoader is a test double for ConfigLoader
type MockConfigLoader struct {
	Cfg       *config.Config
	LoadErr   error
	SaveErr   error
	SaveCalls int
}

func (m *MockConfigLoader) Load(path string) (*config.Config, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.Cfg == nil {
		m.Cfg = config.New()
	}
	return m.Cfg, nil
}

func (m *MockConfigLoader) Save(cfg *config.Config, path string) error {
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Cfg = cfg
	return nil
}

// MockStoreOpener is a test double for StoreOpener
type MockStoreOpener struct {
	Store *store.Store
	Err   error
}

func (m *MockStoreOpener) Open(path string) (*store.Store, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Store != nil {
		return m.Store, nil
	}
	return store.Open(path)
}

// MockClientFactory is a test double for ClientFactory
type MockClientFactory struct {
	Client acme.Client
	Err    error
}

func (m *MockClientFactory) Create(cfg *config.Config) (acme.Client, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Client != nil {
		return m.Client, nil
	}
	return &acme.MockClient{}, nil
}

// MockRecorderOpener is a test double for RecorderOpener
type MockRecorderOpener struct {
	Recorder scheduler.Recorder
	Err      error
}

func (m *MockRecorderOpener) Open(path string) (scheduler.Recorder, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Recorder != nil {
		return m.Recorder, nil
	}
	return &MemoryRecorder{}, nil
}

// MemoryRecorder keeps attempt records in memory for assertions.
type MemoryRecorder struct {
	mu       sync.Mutex
	Attempts []report.Attempt
}

func (r *MemoryRecorder) Record(a report.Attempt) error {
	r.mu.Lock()
	r.Attempts = append(r.Attempts, a)
	r.mu.Unlock()
	return nil
}

// MockDependenciesBuilder helps create mock dependencies for tests
type MockDependenciesBuilder struct {
	deps *Dependencies
}

// NewMockDeps creates a new MockDependenciesBuilder with sensible defaults
func NewMockDeps() *MockDependenciesBuilder {
	return &MockDependenciesBuilder{
		deps: &Dependencies{
			ConfigLoader:  &MockConfigLoader{Cfg: config.New()},
			StoreOpener:   &MockStoreOpener{},
			ClientFactory: &MockClientFactory{},
			RecorderOpen:  &MockRecorderOpener{},
			Executor:      &executor.MockExecutor{},
			Stdin:         input.NewStringReader("y\n"),
		},
	}
}

// WithConfig sets the config for the mock
func (b *MockDependenciesBuilder) WithConfig(cfg *config.Config) *MockDependenciesBuilder {
	b.deps.ConfigLoader = &MockConfigLoader{Cfg: cfg}
	return b
}

// WithConfigLoader sets a custom config loader
func (b *MockDependenciesBuilder) WithConfigLoader(loader ConfigLoader) *MockDependenciesBuilder {
	b.deps.ConfigLoader = loader
	return b
}

// WithStore sets the state store for the mock
func (b *MockDependenciesBuilder) WithStore(st *store.Store) *MockDependenciesBuilder {
	b.deps.StoreOpener = &MockStoreOpener{Store: st}
	return b
}

// WithClient sets the ACME client for the mock
func (b *MockDependenciesBuilder) WithClient(client acme.Client) *MockDependenciesBuilder {
	b.deps.ClientFactory = &MockClientFactory{Client: client}
	return b
}

// WithRecorder sets the attempt recorder for the mock
func (b *MockDependenciesBuilder) WithRecorder(rec scheduler.Recorder) *MockDependenciesBuilder {
	b.deps.RecorderOpen = &MockRecorderOpener{Recorder: rec}
	return b
}

// WithExecutor sets the command executor for the mock
func (b *MockDependenciesBuilder) WithExecutor(e executor.CommandExecutor) *MockDependenciesBuilder {
	b.deps.Executor = e
	return b
}

// WithStdinInput sets the stdin input for the mock
func (b *MockDependenciesBuilder) WithStdinInput(inputs ...string) *MockDependenciesBuilder {
	b.deps.Stdin = input.NewStringReader(inputs...)
	return b
}

// Build returns the configured Dependencies
func (b *MockDependenciesBuilder) Build() *Dependencies {
	return b.deps
}
