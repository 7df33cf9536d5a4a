package install

import (
	"context"
	"fmt"
	"testing"

	"github.com/ksyq12/certd/internal/errors"
	"github.com/ksyq12/certd/internal/executor"
)

func TestVerify(t *testing.T) {
	missing := func(file string) (string, error) {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", file)
	}
	onlyFallback := func(file string) (string, error) {
		if file == "nginx" {
			return "/usr/sbin/nginx", nil
		}
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", file)
	}

	tests := []struct {
		name     string
		lookPath func(file string) (string, error)
		command  []string
		fallback []string
		wantErr  bool
	}{
		{"primary found", nil, []string{"systemctl", "reload", "nginx"}, nil, false},
		{"primary missing, fallback found", onlyFallback, []string{"systemctl", "reload", "nginx"}, []string{"nginx", "-s", "reload"}, false},
		{"both missing", missing, []string{"systemctl", "reload", "nginx"}, []string{"nginx", "-s", "reload"}, true},
		{"missing without fallback", missing, []string{"apachectl", "graceful"}, nil, true},
		{"empty command", nil, nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &executor.MockExecutor{LookPathFunc: tt.lookPath}
			r := NewReloader(mock, tt.command, tt.fallback)

			err := r.Verify()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && errors.CodeOf(err) != errors.CodeReload {
				t.Errorf("CodeOf() = %v, want RELOAD", errors.CodeOf(err))
			}
		})
	}
}

func TestReloadPrimarySucceeds(t *testing.T) {
	mock := &executor.MockExecutor{}
	r := NewReloader(mock, []string{"systemctl", "reload", "nginx"}, []string{"nginx", "-s", "reload"})

	if err := r.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if len(mock.Calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(mock.Calls))
	}
	if mock.Calls[0].Name != "systemctl" {
		t.Errorf("called %q, want systemctl", mock.Calls[0].Name)
	}
}

func TestReloadFallsBack(t *testing.T) {
	mock := &executor.MockExecutor{
		ExecuteFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if name == "systemctl" {
				return []byte("Failed to reload nginx.service"), fmt.Errorf("exit status 1")
			}
			return nil, nil
		},
	}
	r := NewReloader(mock, []string{"systemctl", "reload", "nginx"}, []string{"nginx", "-s", "reload"})

	if err := r.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if len(mock.Calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(mock.Calls))
	}
	if mock.Calls[1].Name != "nginx" {
		t.Errorf("fallback called %q, want nginx", mock.Calls[1].Name)
	}
}

func TestReloadBothFail(t *testing.T) {
	mock := &executor.MockExecutor{
		ExecuteFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("nginx: [emerg] something"), fmt.Errorf("exit status 1")
		},
	}
	r := NewReloader(mock, []string{"systemctl", "reload", "nginx"}, []string{"nginx", "-s", "reload"})

	err := r.Reload(context.Background())
	if err == nil {
		t.Fatal("Reload() expected error")
	}
	if errors.CodeOf(err) != errors.CodeReload {
		t.Errorf("CodeOf() = %v, want RELOAD", errors.CodeOf(err))
	}
}

func TestReloadNoFallbackConfigured(t *testing.T) {
	mock := &executor.MockExecutor{
		ExecuteFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, fmt.Errorf("exit status 1")
		},
	}
	r := NewReloader(mock, []string{"apachectl", "graceful"}, nil)

	err := r.Reload(context.Background())
	if errors.CodeOf(err) != errors.CodeReload {
		t.Errorf("CodeOf() = %v, want RELOAD", errors.CodeOf(err))
	}
	if len(mock.Calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(mock.Calls))
	}
}
