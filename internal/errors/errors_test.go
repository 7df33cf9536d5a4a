package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCertErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *CertError
		want string
	}{
		{
			name: "set with message and cause",
			err: &CertError{
				Code:    CodeInstall,
				Message: "stage certificate",
				Set:     "example.com",
				Err:     stderrors.New("disk full"),
			},
			want: "example.com: stage certificate: disk full",
		},
		{
			name: "set with cause only",
			err: &CertError{
				Code: CodeAcmeNetwork,
				Set:  "example.com",
				Err:  stderrors.New("connection refused"),
			},
			want: "example.com: connection refused",
		},
		{
			name: "set with message only",
			err: &CertError{
				Code:    CodeNotFound,
				Message: "domain set not found",
				Set:     "example.com",
			},
			want: "example.com: domain set not found",
		},
		{
			name: "message with cause",
			err: &CertError{
				Code:    CodeState,
				Message: "write state file",
				Err:     stderrors.New("permission denied"),
			},
			want: "write state file: permission denied",
		},
		{
			name: "message only",
			err:  &CertError{Code: CodeConfig, Message: "email is required"},
			want: "email is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"config error", Config("bad"), CodeConfig},
		{"acme error", Acme(CodeAcmeRateLimited, "example.com", stderrors.New("429")), CodeAcmeRateLimited},
		{"wrapped cert error", fmt.Errorf("outer: %w", NotFound("example.com")), CodeNotFound},
		{"plain error", stderrors.New("plain"), CodeInternal},
		{"nil chain code", Wrap(CodeReload, "signal nginx", nil), CodeReload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAcmeCoercesUnknownCode(t *testing.T) {
	err := Acme(CodeInstall, "example.com", stderrors.New("boom"))
	if got := CodeOf(err); got != CodeAcmeNetwork {
		t.Errorf("CodeOf() = %v, want %v", got, CodeAcmeNetwork)
	}
}

func TestIsAcme(t *testing.T) {
	acmeCodes := []ErrorCode{CodeAcmeValidation, CodeAcmeRateLimited, CodeAcmeNetwork, CodeAcmeRejected}
	for _, code := range acmeCodes {
		if !IsAcme(&CertError{Code: code}) {
			t.Errorf("IsAcme(%v) = false, want true", code)
		}
	}

	if IsAcme(Config("bad")) {
		t.Error("IsAcme(config error) = true, want false")
	}
	if IsAcme(stderrors.New("plain")) {
		t.Error("IsAcme(plain error) = true, want false")
	}
}

func TestSentinelMatching(t *testing.T) {
	err := NotFound("example.com")
	if !Is(err, ErrSetNotFound) {
		t.Error("expected NotFound to match ErrSetNotFound")
	}
	if Is(err, ErrSetExists) {
		t.Error("NotFound should not match ErrSetExists")
	}

	wrapped := fmt.Errorf("while removing: %w", AlreadyExists("example.com"))
	if !Is(wrapped, ErrSetExists) {
		t.Error("expected wrapped AlreadyExists to match ErrSetExists")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := Wrap(CodeInstall, "rename cert.pem", cause)

	if !Is(err, cause) {
		t.Error("expected wrapped error chain to contain the cause")
	}

	var ce *CertError
	if !As(err, &ce) {
		t.Fatal("expected As to find *CertError")
	}
	if ce.Code != CodeInstall {
		t.Errorf("Code = %v, want %v", ce.Code, CodeInstall)
	}
}
