package sessiontoken

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func withSecret(t *testing.T, value string) {
	t.Helper()
	ResetSecretForTests()
	t.Setenv("LOCUMDESK_SESSION_SECRET", value)
	t.Cleanup(ResetSecretForTests)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	withSecret(t, "unit-test-secret")

	token, err := Encode("session-123", time.Hour)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	sessionID, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if sessionID != "session-123" {
		t.Fatalf("unexpected session id: %s", sessionID)
	}
}

func TestEncodeValidation(t *testing.T) {
	withSecret(t, "unit-test-secret")

	if _, err := Encode("", time.Hour); err == nil {
		t.Fatal("empty session id should fail")
	}
	if _, err := Encode("session-123", 0); err == nil {
		t.Fatal("zero ttl should fail")
	}
}

func TestDecodeRejectsTamperedToken(t *testing.T) {
	withSecret(t, "unit-test-secret")

	token, err := Encode("session-123", time.Hour)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %s", token)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := Decode(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token: %v", err)
	}
	if _, err := Decode("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: %v", err)
	}
	if _, err := Decode(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token: %v", err)
	}
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	withSecret(t, "unit-test-secret")

	token, err := Encode("session-123", time.Millisecond)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: %v", err)
	}
}

func TestSecretRotationInvalidatesTokens(t *testing.T) {
	withSecret(t, "first-secret")
	token, err := Encode("session-123", time.Hour)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	withSecret(t, "second-secret")
	if _, err := Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with the old secret: %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	withSecret(t, "")
	if _, err := Encode("session-123", time.Hour); err == nil {
		t.Fatal("expected missing-secret error")
	}
}
