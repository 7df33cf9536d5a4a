// Package acme defines the contract the renewal scheduler consumes for
// certificate issuance, and implements it on top of go-acme/lego. The
// scheduler owns all retry logic; a Client performs exactly one order per
// Request call.
package acme

import (
	"context"
	"strings"

	legoacme "github.com/go-acme/lego/v4/acme"

	"github.com/ksyq12/certd/internal/errors"
)

// IssuedCertificate is the result of a successful ACME order.
type IssuedCertificate struct {
	Domains     []string
	Certificate []byte // leaf plus issuer chain, PEM bundle
	PrivateKey  []byte
	IssuerChain []byte // issuer chain on its own, may be empty
	URL         string // CA's URL for the issued certificate
}

// Client performs domain validation and certificate issuance for one
// domain set. Implementations must be safe for concurrent use; the
// scheduler runs requests for distinct domain sets in parallel.
type Client interface {
	Request(ctx context.Context, domains []string) (*IssuedCertificate, error)
}

// Classify maps an issuance failure onto the daemon's ACME error taxonomy:
// validation_failed, rate_limited, network_error, or ca_rejected.
func Classify(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.CodeAcmeNetwork
	}

	var problemPtr *legoacme.ProblemDetails
	if errors.As(err, &problemPtr) {
		return classifyProblem(problemPtr.Type)
	}

	// Lego aggregates per-domain obtain failures into a single error whose
	// message carries the ACME problem URNs; fall back to matching those.
	msg := err.Error()
	for _, urn := range []string{
		"rateLimited",
		"rejectedIdentifier", "unsupportedIdentifier", "badCSR", "malformed", "externalAccountRequired",
		"unauthorized", "caa", "connection", "dns", "tls", "incorrectResponse",
	} {
		if strings.Contains(msg, "urn:ietf:params:acme:error:"+urn) {
			return classifyProblem("urn:ietf:params:acme:error:" + urn)
		}
	}

	return errors.CodeAcmeNetwork
}

func classifyProblem(problemType string) errors.ErrorCode {
	kind := problemType
	if i := strings.LastIndex(problemType, ":"); i >= 0 {
		kind = problemType[i+1:]
	}

	switch kind {
	case "rateLimited":
		return errors.CodeAcmeRateLimited
	case "rejectedIdentifier", "unsupportedIdentifier", "badCSR", "malformed", "externalAccountRequired":
		return errors.CodeAcmeRejected
	case "serverInternal":
		return errors.CodeAcmeNetwork
	default:
		// unauthorized, caa, connection, dns, tls, incorrectResponse and
		// anything else raised while proving control of the domain.
		return errors.CodeAcmeValidation
	}
}
