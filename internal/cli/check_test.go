package cli

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ksyq12/certd/internal/acme"
	"github.com/ksyq12/certd/internal/config"
	"github.com/ksyq12/certd/internal/errors"
	"github.com/ksyq12/certd/internal/executor"
	"github.com/ksyq12/certd/internal/output"
	"github.com/ksyq12/certd/internal/report"
)

func selfSigned(t *testing.T, domain string) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     []string{domain},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(90 * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
}

func TestRunCheckDryRun(t *testing.T) {
	cfg := testConfig()
	cfg.CertDir = t.TempDir()
	cfg.Sites = []config.Site{{Domains: []string{"example.com"}}}
	st := newTestStore(t, cfg.Sites, cfg.CertDir)

	client := &acme.MockClient{}
	jsonOutput = false
	dryRun = true
	defer func() { dryRun = false }()

	oldDeps := deps
	deps = NewMockDeps().
		WithConfigLoader(&MockConfigLoader{Cfg: cfg}).
		WithStore(st).
		WithClient(client).
		Build()
	defer func() { deps = oldDeps }()

	var buf bytes.Buffer
	restore := output.SetWriter(&buf)
	defer restore()

	if err := runCheck(nil, nil); err != nil {
		t.Fatalf("runCheck() error = %v", err)
	}

	if !strings.Contains(buf.String(), "due for renewal") {
		t.Errorf("due set not reported:\n%s", buf.String())
	}
	if client.CallCount() != 0 {
		t.Errorf("dry run performed %d renewals", client.CallCount())
	}
}

func TestRunCheckRenewsDueSet(t *testing.T) {
	cfg := testConfig()
	cfg.CertDir = t.TempDir()
	cfg.Sites = []config.Site{{Domains: []string{"example.com"}}}
	st := newTestStore(t, cfg.Sites, cfg.CertDir)

	certPEM, keyPEM := selfSigned(t, "example.com")
	client := &acme.MockClient{
		RequestFunc: func(ctx context.Context, domains []string) (*acme.IssuedCertificate, error) {
			return &acme.IssuedCertificate{Domains: domains, Certificate: certPEM, PrivateKey: keyPEM}, nil
		},
	}
	exec := &executor.MockExecutor{}
	recorder := &MemoryRecorder{}

	jsonOutput = false
	dryRun = false
	oldDeps := deps
	deps = NewMockDeps().
		WithConfigLoader(&MockConfigLoader{Cfg: cfg}).
		WithStore(st).
		WithClient(client).
		WithRecorder(recorder).
		WithExecutor(exec).
		Build()
	defer func() { deps = oldDeps }()

	var buf bytes.Buffer
	restore := output.SetWriter(&buf)
	defer restore()

	if err := runCheck(nil, nil); err != nil {
		t.Fatalf("runCheck() error = %v", err)
	}

	// The certificate landed on disk.
	if _, err := os.Stat(filepath.Join(cfg.CertDir, "example.com", "cert.pem")); err != nil {
		t.Errorf("cert.pem not installed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.CertDir, "example.com", "key.pem")); err != nil {
		t.Errorf("key.pem not installed: %v", err)
	}

	// The web server got its reload signal.
	if len(exec.Calls) == 0 {
		t.Error("no reload command executed")
	}

	rec, _ := st.Get("example.com")
	if !rec.Installed() {
		t.Error("store does not reflect the installed certificate")
	}
	if len(recorder.Attempts) != 1 || recorder.Attempts[0].Outcome != report.OutcomeSuccess {
		t.Errorf("attempts = %+v, want one success", recorder.Attempts)
	}
	if !strings.Contains(buf.String(), "all certificates current") {
		t.Errorf("unexpected summary:\n%s", buf.String())
	}
}

func TestRunCheckReportsFailures(t *testing.T) {
	cfg := testConfig()
	cfg.CertDir = t.TempDir()
	cfg.Sites = []config.Site{{Domains: []string{"example.com"}}}
	st := newTestStore(t, cfg.Sites, cfg.CertDir)

	client := &acme.MockClient{
		RequestFunc: func(ctx context.Context, domains []string) (*acme.IssuedCertificate, error) {
			return nil, errors.Acme(errors.CodeAcmeNetwork, "example.com", fmt.Errorf("connection refused"))
		},
	}

	jsonOutput = false
	dryRun = false
	oldDeps := deps
	deps = NewMockDeps().
		WithConfigLoader(&MockConfigLoader{Cfg: cfg}).
		WithStore(st).
		WithClient(client).
		Build()
	defer func() { deps = oldDeps }()

	var buf bytes.Buffer
	restore := output.SetWriter(&buf)
	defer restore()

	// A failed pass returns an error so the one-shot exit code is nonzero.
	if err := runCheck(nil, nil); err == nil {
		t.Fatal("runCheck() expected error for unhealthy set")
	}

	rec, _ := st.Get("example.com")
	if rec.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", rec.Attempts)
	}
	if !strings.Contains(buf.String(), "still need renewal") {
		t.Errorf("failure not reported:\n%s", buf.String())
	}
}
