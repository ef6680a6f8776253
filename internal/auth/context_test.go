package auth

import (
	"context"
	"testing"
)

func TestIdentityContextRoundtrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{Subject: "42", Role: RoleVoter})

	id, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected identity in context")
	}
	if id.Subject != "42" || id.Role != RoleVoter {
		t.Errorf("identity = %+v", id)
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no identity in empty context")
	}
}

func TestVoterID(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{Subject: "42", Role: RoleVoter})
	if got := VoterID(ctx); got != 42 {
		t.Errorf("VoterID = %d, want 42", got)
	}

	// Admin subjects are usernames, not voter ids.
	adminCtx := WithIdentity(context.Background(), Identity{Subject: "president", Role: RoleAdmin})
	if got := VoterID(adminCtx); got != 0 {
		t.Errorf("VoterID for admin = %d, want 0", got)
	}

	if got := VoterID(context.Background()); got != 0 {
		t.Errorf("VoterID for empty context = %d, want 0", got)
	}
}

func TestActorAndIsAdmin(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{Subject: "president", Role: RoleAdmin})
	if got := Actor(ctx); got != "president" {
		t.Errorf("Actor = %q, want president", got)
	}
	if !IsAdmin(ctx) {
		t.Error("expected IsAdmin true")
	}

	voterCtx := WithIdentity(context.Background(), Identity{Subject: "42", Role: RoleVoter})
	if IsAdmin(voterCtx) {
		t.Error("expected IsAdmin false for voter")
	}
}
