package acme

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/dns01"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/providers/dns/cloudflare"
	"github.com/go-acme/lego/v4/registration"

	"github.com/ksyq12/certd/internal/config"
	"github.com/ksyq12/certd/internal/errors"
	"github.com/ksyq12/certd/internal/logger"
)

// account implements lego's registration.User.
type account struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (a *account) GetEmail() string                        { return a.email }
func (a *account) GetRegistration() *registration.Resource { return a.registration }
func (a *account) GetPrivateKey() crypto.PrivateKey        { return a.key }

// LegoClient is the production Client backed by go-acme/lego. One instance
// serves all domain sets; the underlying lego client is safe for
// concurrent orders.
type LegoClient struct {
	client  *lego.Client
	user    *account
	regOnce sync.Once
	regErr  error
}

// NewLegoClient builds an ACME client from the daemon configuration. The
// account key is persisted next to the certificates so the same account is
// reused across restarts.
func NewLegoClient(cfg *config.Config) (*LegoClient, error) {
	keyPath := filepath.Join(cfg.CertDir, "account.key")
	key, err := loadOrCreateAccountKey(keyPath)
	if err != nil {
		return nil, err
	}

	user := &account{email: cfg.Email, key: key}

	legoCfg := lego.NewConfig(user)
	legoCfg.CADirURL = cfg.CADirectoryURL
	legoCfg.Certificate.KeyType = certcrypto.EC256

	client, err := lego.NewClient(legoCfg)
	if err != nil {
		return nil, errors.Wrap(errors.CodeConfig, "create ACME client", err)
	}

	switch cfg.Challenge.Type {
	case config.ChallengeHTTP01:
		host, port, err := splitHTTPAddress(cfg.Challenge.HTTPAddress)
		if err != nil {
			return nil, err
		}
		if err := client.Challenge.SetHTTP01Provider(http01.NewProviderServer(host, port)); err != nil {
			return nil, errors.Wrap(errors.CodeConfig, "configure http-01 solver", err)
		}
	case config.ChallengeDNS01:
		cfCfg := cloudflare.NewDefaultConfig()
		cfCfg.AuthToken = cfg.Challenge.CloudflareAPIToken
		provider, err := cloudflare.NewDNSProviderConfig(cfCfg)
		if err != nil {
			return nil, errors.Wrap(errors.CodeConfig, "configure cloudflare dns-01 solver", err)
		}
		if err := client.Challenge.SetDNS01Provider(provider, dns01.AddDNSTimeout(10*time.Minute)); err != nil {
			return nil, errors.Wrap(errors.CodeConfig, "configure dns-01 solver", err)
		}
	default:
		return nil, errors.Configf("unsupported challenge type %q", cfg.Challenge.Type)
	}

	return &LegoClient{client: client, user: user}, nil
}

// Request performs a single ACME order for the domain set. The returned
// error carries one of the ACME error codes; a context deadline counts as
// a network failure.
func (c *LegoClient) Request(ctx context.Context, domains []string) (*IssuedCertificate, error) {
	set := config.SetKey(domains)

	if err := c.ensureRegistered(); err != nil {
		return nil, errors.Acme(Classify(err), set, err)
	}

	type obtained struct {
		res *certificate.Resource
		err error
	}
	done := make(chan obtained, 1)

	// Lego's Obtain is not context-aware; run it in a goroutine so the
	// per-attempt timeout still bounds the caller. An abandoned order is
	// harmless, the CA expires it.
	go func() {
		res, err := c.client.Certificate.Obtain(certificate.ObtainRequest{
			Domains: domains,
			Bundle:  true,
		})
		done <- obtained{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.Acme(errors.CodeAcmeNetwork, set, ctx.Err())
	case o := <-done:
		if o.err != nil {
			return nil, errors.Acme(Classify(o.err), set, o.err)
		}
		logger.InfoFields("certificate obtained", map[string]interface{}{
			"domains": set,
			"url":     o.res.CertURL,
		})
		return &IssuedCertificate{
			Domains:     domains,
			Certificate: o.res.Certificate,
			PrivateKey:  o.res.PrivateKey,
			IssuerChain: o.res.IssuerCertificate,
			URL:         o.res.CertURL,
		}, nil
	}
}

// ensureRegistered registers the ACME account on first use. Lego resolves
// an existing account from the key, so this is idempotent across restarts.
func (c *LegoClient) ensureRegistered() error {
	c.regOnce.Do(func() {
		reg, err := c.client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
		if err != nil {
			c.regErr = fmt.Errorf("register ACME account for %s: %w", c.user.email, err)
			return
		}
		c.user.registration = reg
		logger.Info("ACME account registered for %s", c.user.email)
	})
	return c.regErr
}

func loadOrCreateAccountKey(path string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, perr := certcrypto.ParsePEMPrivateKey(data)
		if perr != nil {
			return nil, errors.Wrap(errors.CodeConfig, fmt.Sprintf("parse account key %s", path), perr)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.CodeConfig, fmt.Sprintf("read account key %s", path), err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "generate account key", err)
	}

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "encode account key", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(errors.CodeConfig, "create account key directory", err)
	}
	if err := os.WriteFile(path, pemBytes, 0600); err != nil {
		return nil, errors.Wrap(errors.CodeConfig, fmt.Sprintf("write account key %s", path), err)
	}

	logger.Info("generated new ACME account key at %s", path)
	return key, nil
}

func splitHTTPAddress(addr string) (string, string, error) {
	if addr == "" {
		return "", "80", nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", errors.Configf("invalid http_address %q", addr)
	}
	if port == "" {
		port = "80"
	}
	return host, port, nil
}
