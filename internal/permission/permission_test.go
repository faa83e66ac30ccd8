package permission

import "testing"

func TestAuthorize(t *testing.T) {
	gate := NewGate(NewOwnerSet("owner", " ", "owner2"))

	tests := []struct {
		name   string
		policy Policy
		actor  Actor
		want   Reason
	}{
		{name: "open module", policy: Policy{}, actor: Actor{ID: "u1"}, want: ReasonNone},
		{name: "admin required, not admin", policy: Policy{RequireAdmin: true}, actor: Actor{ID: "owner"}, want: ReasonAdmin},
		{name: "admin required, admin", policy: Policy{RequireAdmin: true}, actor: Actor{ID: "u1", IsAdmin: true}, want: ReasonNone},
		{name: "owner required, stranger", policy: Policy{RequireOwner: true}, actor: Actor{ID: "u1", IsAdmin: true}, want: ReasonOwner},
		{name: "owner required, owner", policy: Policy{RequireOwner: true}, actor: Actor{ID: "owner2"}, want: ReasonNone},
		{name: "admin checked before owner", policy: Policy{RequireAdmin: true, RequireOwner: true}, actor: Actor{ID: "u1"}, want: ReasonAdmin},
		{
			name:   "all roles, subset held",
			policy: Policy{Roles: &Roles{Mode: All, IDs: []string{"r1", "r2"}}},
			actor:  Actor{ID: "u1", Roles: []string{"r1"}},
			want:   ReasonRolesAll,
		},
		{
			name:   "all roles, all held",
			policy: Policy{Roles: &Roles{Mode: All, IDs: []string{"r1", "r2"}}},
			actor:  Actor{ID: "u1", Roles: []string{"r2", "r3", "r1"}},
			want:   ReasonNone,
		},
		{
			name:   "any roles, one held",
			policy: Policy{Roles: &Roles{Mode: Any, IDs: []string{"r1", "r2"}}},
			actor:  Actor{ID: "u1", Roles: []string{"r2"}},
			want:   ReasonNone,
		},
		{
			name:   "any roles, none held",
			policy: Policy{Roles: &Roles{Mode: Any, IDs: []string{"r1", "r2"}}},
			actor:  Actor{ID: "u1", Roles: []string{"r9"}},
			want:   ReasonRolesAny,
		},
		{
			name:   "owner passes but roles fail",
			policy: Policy{RequireOwner: true, Roles: &Roles{Mode: Any, IDs: []string{"r1"}}},
			actor:  Actor{ID: "owner"},
			want:   ReasonRolesAny,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gate.Authorize(tt.policy, tt.actor)
			if got.Reason != tt.want {
				t.Fatalf("reason = %v, want %v", got.Reason, tt.want)
			}
			if got.Allowed != (tt.want == ReasonNone) {
				t.Fatalf("allowed = %v for reason %v", got.Allowed, got.Reason)
			}
			if !got.Allowed && got.Message == "" {
				t.Fatal("denial without message")
			}
		})
	}
}

func TestDenialMessages(t *testing.T) {
	gate := NewGate(nil)
	cases := map[string]Decision{
		AdminOnly:  gate.Authorize(Policy{RequireAdmin: true}, Actor{}),
		OwnerOnly:  gate.Authorize(Policy{RequireOwner: true}, Actor{ID: "u1"}),
		MissingAll: gate.Authorize(Policy{Roles: &Roles{Mode: All, IDs: []string{"r"}}}, Actor{}),
		MissingAny: gate.Authorize(Policy{Roles: &Roles{Mode: Any, IDs: []string{"r"}}}, Actor{}),
	}
	for want, d := range cases {
		if d.Message != want {
			t.Fatalf("message = %q, want %q", d.Message, want)
		}
	}
}

func TestOwnerSet(t *testing.T) {
	set := NewOwnerSet("a", "", " b ")
	if !set.Contains("a") || !set.Contains("b") {
		t.Fatalf("set = %v, want a and b", set)
	}
	if set.Contains("") {
		t.Fatal("blank id must not be an owner")
	}
	if len(set.IDs()) != 2 {
		t.Fatalf("ids = %v, want 2", set.IDs())
	}
}
