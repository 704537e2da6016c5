package security

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateTOTPKeyProducesProvisioningURL(t *testing.T) {
	key, err := GenerateTOTPKey("Digital Bank", "alice@example.com")
	if err != nil {
		t.Fatalf("GenerateTOTPKey returned error: %v", err)
	}
	if !strings.HasPrefix(key.URL(), "otpauth://totp/") {
		t.Fatalf("unexpected provisioning url %q", key.URL())
	}
	if key.Secret() == "" {
		t.Fatal("expected non-empty secret")
	}
}

func TestOTPCodeRoundTripWithinSkew(t *testing.T) {
	secret, err := GenerateOTPSecret()
	if err != nil {
		t.Fatalf("GenerateOTPSecret returned error: %v", err)
	}

	opts := OTPOptions{Period: 30 * time.Second, Skew: 1}
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	code, err := GenerateOTPCode(secret, issuedAt, opts)
	if err != nil {
		t.Fatalf("GenerateOTPCode returned error: %v", err)
	}

	ok, err := ValidateOTPCode(code, secret, issuedAt.Add(30*time.Second), opts)
	if err != nil || !ok {
		t.Fatalf("expected code to validate within skew, ok=%v err=%v", ok, err)
	}

	ok, _ = ValidateOTPCode(code, secret, issuedAt.Add(5*time.Minute), opts)
	if ok {
		t.Fatal("expected code outside the skew window to be rejected")
	}
}

func TestOTPLongPeriodForOutOfBandCodes(t *testing.T) {
	secret, err := GenerateOTPSecret()
	if err != nil {
		t.Fatalf("GenerateOTPSecret returned error: %v", err)
	}

	opts := OTPOptions{Period: 5 * time.Minute}
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	code, err := GenerateOTPCode(secret, issuedAt, opts)
	if err != nil {
		t.Fatalf("GenerateOTPCode returned error: %v", err)
	}

	ok, err := ValidateOTPCode(code, secret, issuedAt.Add(4*time.Minute), opts)
	if err != nil || !ok {
		t.Fatalf("expected code to remain valid inside its period, ok=%v err=%v", ok, err)
	}
}
