package auth

import (
	"errors"
	"testing"
	"time"
)

func TestExchangeAndValidate(t *testing.T) {
	svc := NewService("secret", "analyst", "hunter2")

	tok, err := svc.Exchange("analyst", "hunter2")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if tok.TokenType != "bearer" {
		t.Errorf("expected bearer token type, got %q", tok.TokenType)
	}

	subject, err := svc.Validate(tok.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if subject != "analyst" {
		t.Errorf("expected subject analyst, got %q", subject)
	}
}

func TestExchangeBadCredentials(t *testing.T) {
	svc := NewService("secret", "analyst", "hunter2")

	cases := [][2]string{
		{"analyst", "wrong"},
		{"intruder", "hunter2"},
		{"", ""},
	}
	for _, c := range cases {
		if _, err := svc.Exchange(c[0], c[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials for %q/%q, got %v", c[0], c[1], err)
		}
	}
}

func TestValidateRejectsTampering(t *testing.T) {
	svc := NewService("secret", "analyst", "hunter2")
	tok, _ := svc.Exchange("analyst", "hunter2")

	if _, err := svc.Validate(tok.AccessToken + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Error("expected tampered token to be rejected")
	}
	if _, err := svc.Validate("not-base64!!"); !errors.Is(err, ErrInvalidToken) {
		t.Error("expected garbage token to be rejected")
	}

	// A token signed with a different secret must not validate.
	other := NewService("other-secret", "analyst", "hunter2")
	otherTok, _ := other.Exchange("analyst", "hunter2")
	if _, err := svc.Validate(otherTok.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Error("expected foreign-secret token to be rejected")
	}
}

func TestValidateExpiry(t *testing.T) {
	svc := NewService("secret", "analyst", "hunter2")
	tok, _ := svc.Exchange("analyst", "hunter2")

	svc.now = func() time.Time { return time.Now().Add(tokenTTL + time.Minute) }
	if _, err := svc.Validate(tok.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Error("expected expired token to be rejected")
	}
}
