package auth

import (
	"testing"
	"time"
)

func TestIssueParseRoundTrip(t *testing.T) {
	pair, err := Issue("operator", "operator", "campus-attendance", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := Parse(pair.AccessToken, "secret", "campus-attendance")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.Subject != "operator" || claims.Role != "operator" {
		t.Errorf("claims = %q/%q, want operator/operator", claims.Subject, claims.Role)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue("operator", "operator", "campus-attendance", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := Parse(pair.AccessToken, "other-key", "campus-attendance"); err == nil {
		t.Error("Parse() with wrong key should fail")
	}
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	pair, err := Issue("operator", "operator", "someone-else", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "campus-attendance"); err == nil {
		t.Error("Parse() with issuer mismatch should fail")
	}
}
