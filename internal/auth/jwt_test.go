package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("stu-1", "student", "presence-engine", "test-key", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := Parse(pair.AccessToken, "test-key", "presence-engine")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "stu-1" || claims.Role != "student" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue("stu-1", "student", "presence-engine", "test-key", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "other-key", "presence-engine"); err == nil {
		t.Fatal("token parsed with wrong key")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	pair, err := Issue("stu-1", "student", "someone-else", "test-key", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "test-key", "presence-engine"); err == nil {
		t.Fatal("token parsed with wrong issuer")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	pair, err := Issue("stu-1", "student", "presence-engine", "test-key", -time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "test-key", "presence-engine"); err == nil {
		t.Fatal("expired token parsed")
	}
}
