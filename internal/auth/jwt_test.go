package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/modsync/server/internal/apperror"
)

// newTestTokenService creates a TokenService with a fixed secret so tests
// are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short")
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestGenerate_ReturnsNonEmptyToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if token == "" {
		t.Error("Generate() returned empty token")
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	userID := "user-abc-123"

	token, err := ts.Generate(userID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != userID {
		t.Errorf("Validate() userID = %q, want %q", got, userID)
	}
}

// TestValidate_ExpiryBoundary checks the 30-minute lifetime from both
// sides by shifting the service clock instead of sleeping.
func TestValidate_ExpiryBoundary(t *testing.T) {
	ts := newTestTokenService(t)

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return issued }

	token, err := ts.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// 29 minutes after issue: still valid.
	ts.now = func() time.Time { return issued.Add(29 * time.Minute) }
	if _, err := ts.Validate(token); err != nil {
		t.Fatalf("Validate() at 29m error = %v, want nil", err)
	}

	// 31 minutes after issue: expired.
	ts.now = func() time.Time { return issued.Add(31 * time.Minute) }
	_, err = ts.Validate(token)
	if err == nil {
		t.Fatal("Validate() at 31m should fail")
	}
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Validate() expired error = %v, want ErrUnauthorized", err)
	}
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate("user-123")

	// Flip the tail of the signature.
	tampered := token[:len(token)-3] + "xxx"

	_, err := ts.Validate(tampered)
	if err == nil {
		t.Fatal("Validate() should return an error for a tampered token")
	}
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Validate() tampered error = %v, want ErrUnauthorized", err)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!")
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")

	token, _ := ts1.Generate("user-123")

	_, err := ts2.Validate(token)
	if err == nil {
		t.Fatal("Validate() should fail when using a different secret")
	}
}

func TestValidate_GarbageInput(t *testing.T) {
	ts := newTestTokenService(t)

	for _, input := range []string{"", "not.a.jwt", "a.b.c.d"} {
		if _, err := ts.Validate(input); err == nil {
			t.Errorf("Validate(%q) should return an error", input)
		}
	}
}

// All verification failures must surface as the same error so a caller
// cannot distinguish an expired token from a forged one.
func TestValidate_UniformFailureError(t *testing.T) {
	ts := newTestTokenService(t)

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return issued }
	token, _ := ts.Generate("user-123")
	ts.now = func() time.Time { return issued.Add(time.Hour) }

	_, expiredErr := ts.Validate(token)
	_, garbageErr := ts.Validate("garbage")

	if expiredErr == nil || garbageErr == nil {
		t.Fatal("both validations should fail")
	}
	if expiredErr.Error() != garbageErr.Error() {
		t.Errorf("failure messages differ: %q vs %q", expiredErr, garbageErr)
	}
}
