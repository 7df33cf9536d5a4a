package cli

import (
	"github.com/ksyq12/certd/internal/acme"
	"github.com/ksyq12/certd/internal/config"
	"github.com/ksyq12/certd/internal/executor"
	"github.com/ksyq12/certd/internal/input"
	"github.com/ksyq12/certd/internal/report"
	"github.com/ksyq12/certd/internal/scheduler"
	"github.com/ksyq12/certd/internal/store"
)

// Dependencies aggregates all CLI external dependencies for testability
type Dependencies struct {
	ConfigLoader  ConfigLoader
	StoreOpener   StoreOpener
	ClientFactory ClientFactory
	RecorderOpen  RecorderOpener
	Executor      executor.CommandExecutor
	Stdin         input.Reader
}

// ConfigLoader handles configuration loading and saving
type ConfigLoader interface {
	Load(path string) (*config.Config, error)
	Save(cfg *config.Config, path string) error
}

// StoreOpener opens the certificate state store
type StoreOpener interface {
	Open(path string) (*store.Store, error)
}

// ClientFactory builds the ACME client for the configured CA
type ClientFactory interface {
	Create(cfg *config.Config) (acme.Client, error)
}

// RecorderOpener opens the renewal attempt log
type RecorderOpener interface {
	Open(path string) (scheduler.Recorder, error)
}

// Package-level dependencies (can be overridden for testing)
var deps = &Dependencies{
	ConfigLoader:  &realConfigLoader{},
	StoreOpener:   &realStoreOpener{},
	ClientFactory: &realClientFactory{},
	RecorderOpen:  &realRecorderOpener{},
	Executor:      executor.NewSystemExecutor(),
	Stdin:         input.NewStdinReader(),
}

// SetDeps replaces the package dependencies (for testing)
func SetDeps(d *Dependencies) {
	deps = d
}

// GetDeps returns the current dependencies (for testing)
func GetDeps() *Dependencies {
	return deps
}

// Real implementations that delegate to the owning packages

type realConfigLoader struct{}

func (r *realConfigLoader) Load(path string) (*config.Config, error) {
	return config.Load(path)
}

func (r *realConfigLoader) Save(cfg *config.Config, path string) error {
	return cfg.Save(path)
}

type realStoreOpener struct{}

func (r *realStoreOpener) Open(path string) (*store.Store, error) {
	return store.Open(path)
}

type realClientFactory struct{}

func (r *realClientFactory) Create(cfg *config.Config) (acme.Client, error) {
	return acme.NewLegoClient(cfg)
}

type realRecorderOpener struct{}

func (r *realRecorderOpener) Open(path string) (scheduler.Recorder, error) {
	return report.Open(path)
}
