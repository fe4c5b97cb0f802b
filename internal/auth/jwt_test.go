package auth

import (
	"testing"
	"time"
)

func TestIssueParseRoundTrip(t *testing.T) {
	pair, err := Issue("p1", RoleCoach, "u1", "attendtrack", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := Parse(pair.AccessToken, "secret", "attendtrack")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "p1" || claims.Role != RoleCoach || claims.UnitID != "u1" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejectsBadKeyAndIssuer(t *testing.T) {
	pair, err := Issue("p1", RoleMember, "", "attendtrack", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "other-secret", "attendtrack"); err == nil {
		t.Fatal("wrong key accepted")
	}
	if _, err := Parse(pair.AccessToken, "secret", "someone-else"); err == nil {
		t.Fatal("wrong issuer accepted")
	}
}
