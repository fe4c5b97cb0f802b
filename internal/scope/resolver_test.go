package scope

import (
	"context"
	"testing"

	"attendtrack/internal/auth"
	"attendtrack/internal/report"
)

func TestFromClaims(t *testing.T) {
	cases := []struct {
		name   string
		claims auth.Claims
		want   report.Scope
		fail   bool
	}{
		{"admin", auth.Claims{Subject: "boss", Role: auth.RoleAdmin}, report.Scope{Kind: report.ScopeAll}, false},
		{"coach", auth.Claims{Subject: "c1", Role: auth.RoleCoach, UnitID: "u1"}, report.Scope{Kind: report.ScopeUnit, UnitIDs: []string{"u1"}}, false},
		{"coach without unit", auth.Claims{Subject: "c1", Role: auth.RoleCoach}, report.Scope{}, true},
		{"member", auth.Claims{Subject: "p1", Role: auth.RoleMember}, report.Scope{Kind: report.ScopeSelf, ParticipantID: "p1"}, false},
		{"unknown role", auth.Claims{Subject: "x", Role: "visitor"}, report.Scope{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromClaims(tc.claims)
			if tc.fail {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("FromClaims: %v", err)
			}
			if got.Kind != tc.want.Kind || got.ParticipantID != tc.want.ParticipantID {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			if len(got.UnitIDs) != len(tc.want.UnitIDs) {
				t.Fatalf("units %v, want %v", got.UnitIDs, tc.want.UnitIDs)
			}
		})
	}
}

func TestStaticResolver(t *testing.T) {
	r := Static{Scopes: map[string]report.Scope{
		"p1": {Kind: report.ScopeSelf, ParticipantID: "p1"},
	}}
	sc, err := r.ResolveScope(context.Background(), "p1")
	if err != nil || sc.Kind != report.ScopeSelf {
		t.Fatalf("sc=%+v err=%v", sc, err)
	}
	if _, err := r.ResolveScope(context.Background(), "stranger"); err == nil {
		t.Fatal("unknown caller resolved")
	}
}
