package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ksyq12/certd/internal/config"
	"github.com/ksyq12/certd/internal/store"
)

func newTestStore(t *testing.T, sites []config.Site, certDir string) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.yaml"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	st.SyncSites(sites, certDir)
	return st
}

func TestRunRemove(t *testing.T) {
	tests := []struct {
		name     string
		arg      string
		purge    bool
		stdin    string
		wantErr  bool
		validate func(*testing.T, *MockConfigLoader, *store.Store, string)
	}{
		{
			name: "remove by primary domain",
			arg:  "example.com",
			validate: func(t *testing.T, loader *MockConfigLoader, st *store.Store, certDir string) {
				if loader.SaveCalls != 1 {
					t.Errorf("SaveCalls = %d, want 1", loader.SaveCalls)
				}
				if len(loader.Cfg.Sites) != 1 {
					t.Errorf("sites = %d, want 1", len(loader.Cfg.Sites))
				}
				if _, ok := st.Get("example.com,www.example.com"); ok {
					t.Error("state record not decommissioned")
				}
				// Files stay without --purge.
				if _, err := os.Stat(filepath.Join(certDir, "example.com")); err != nil {
					t.Error("certificate files deleted without --purge")
				}
			},
		},
		{
			name:  "remove with purge deletes files",
			arg:   "example.com",
			purge: true,
			validate: func(t *testing.T, loader *MockConfigLoader, st *store.Store, certDir string) {
				if _, err := os.Stat(filepath.Join(certDir, "example.com")); !os.IsNotExist(err) {
					t.Error("certificate files survived --purge")
				}
			},
		},
		{
			name:  "declined confirmation aborts",
			arg:   "example.com",
			stdin: "n\n",
			validate: func(t *testing.T, loader *MockConfigLoader, st *store.Store, certDir string) {
				if loader.SaveCalls != 0 {
					t.Errorf("SaveCalls = %d, want 0", loader.SaveCalls)
				}
				if len(loader.Cfg.Sites) != 2 {
					t.Errorf("sites = %d, want 2", len(loader.Cfg.Sites))
				}
				if _, ok := st.Get("example.com,www.example.com"); !ok {
					t.Error("state record removed despite aborted command")
				}
			},
		},
		{
			name:    "unknown domain",
			arg:     "missing.example.com",
			wantErr: true,
			validate: func(t *testing.T, loader *MockConfigLoader, st *store.Store, certDir string) {
				if loader.SaveCalls != 0 {
					t.Errorf("SaveCalls = %d, want 0", loader.SaveCalls)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certDir := t.TempDir()
			if err := os.MkdirAll(filepath.Join(certDir, "example.com"), 0755); err != nil {
				t.Fatal(err)
			}

			cfg := testConfig()
			cfg.CertDir = certDir
			cfg.Sites = []config.Site{
				{Domains: []string{"example.com", "www.example.com"}},
				{Domains: []string{"other.example.com"}},
			}
			loader := &MockConfigLoader{Cfg: cfg}
			st := newTestStore(t, cfg.Sites, certDir)

			jsonOutput = false
			purgeFiles = tt.purge
			removeConfirm = false

			stdin := tt.stdin
			if stdin == "" {
				stdin = "y\n"
			}
			oldDeps := deps
			deps = NewMockDeps().
				WithConfigLoader(loader).
				WithStore(st).
				WithStdinInput(stdin).
				Build()
			defer func() { deps = oldDeps }()

			err := runRemove(nil, []string{tt.arg})

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.validate != nil {
				tt.validate(t, loader, st, certDir)
			}
		})
	}
}
