package services

import (
	"context"
	"testing"

	"photo-qc-api/models"
)

var (
	keyR1S1 = models.SubsectionKey{RouteID: "R1", SubsectionID: "S1"}
	keyR1S2 = models.SubsectionKey{RouteID: "R1", SubsectionID: "S2"}
	keyR2S1 = models.SubsectionKey{RouteID: "R2", SubsectionID: "S1"}
)

func TestAllowedKeysOpenSubsectionsForEveryRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, role := range []models.Role{models.RoleEngineer, models.RoleReviewer, models.RoleAdmin} {
		keys, err := env.access.AllowedKeys(ctx, "anyone@example.com", role)
		if err != nil {
			t.Fatalf("allowed keys for %s: %v", role, err)
		}
		if len(keys) != 3 || !keys.Contains(keyR1S1) || !keys.Contains(keyR2S1) {
			t.Fatalf("role %s should see all open subsections, got %v", role, keys.Keys())
		}
	}
}

func TestAllowedKeysRestrictedSubsection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.access.ReplaceGrants(ctx, admin(), keyR1S1, []string{"a@x.com"}); err != nil {
		t.Fatalf("replace grants: %v", err)
	}

	keys, err := env.access.AllowedKeys(ctx, "b@x.com", models.RoleEngineer)
	if err != nil {
		t.Fatalf("allowed keys: %v", err)
	}
	if keys.Contains(keyR1S1) {
		t.Fatalf("b@x.com must not see R1/S1")
	}
	if !keys.Contains(keyR1S2) || !keys.Contains(keyR2S1) {
		t.Fatalf("open subsections should stay visible, got %v", keys.Keys())
	}

	keys, err = env.access.AllowedKeys(ctx, "A@X.COM", models.RoleReviewer)
	if err != nil {
		t.Fatalf("allowed keys: %v", err)
	}
	if !keys.Contains(keyR1S1) {
		t.Fatalf("A@X.COM should match a@x.com")
	}

	keys, _ = env.access.AllowedKeys(ctx, "b@x.com", models.RoleAdmin)
	if !keys.Contains(keyR1S1) {
		t.Fatalf("admins see every subsection")
	}
}

func TestCanAccessMatchesAllowedKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.access.ReplaceGrants(ctx, admin(), keyR2S1, []string{"Lead@Example.com"}); err != nil {
		t.Fatalf("replace grants: %v", err)
	}

	cases := []struct {
		caller Identity
		key    models.SubsectionKey
		want   bool
	}{
		{engineer("lead@example.com"), keyR2S1, true},
		{engineer("other@example.com"), keyR2S1, false},
		{engineer("other@example.com"), keyR1S1, true},
		{admin(), keyR2S1, true},
	}
	for _, tc := range cases {
		got, err := env.access.CanAccess(ctx, tc.caller, tc.key)
		if err != nil {
			t.Fatalf("can access: %v", err)
		}
		if got != tc.want {
			t.Fatalf("CanAccess(%s, %v) = %v, want %v", tc.caller.Email, tc.key, got, tc.want)
		}
	}
}

func TestReplaceGrantsNormalizesAndReplaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	grants, err := env.access.ReplaceGrants(ctx, admin(), keyR1S1,
		[]string{" Zed@Example.com", "amy@example.com", "AMY@example.com", ""})
	if err != nil {
		t.Fatalf("replace grants: %v", err)
	}
	if len(grants) != 2 || grants[0].Email != "amy@example.com" || grants[1].Email != "zed@example.com" {
		t.Fatalf("unexpected grants: %+v", grants)
	}

	if _, err := env.access.ReplaceGrants(ctx, admin(), keyR1S1, []string{"new@example.com"}); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	listed, err := env.access.ListGrants(ctx, admin(), keyR1S1)
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(listed) != 1 || listed[0].Email != "new@example.com" {
		t.Fatalf("replace should drop old grants, got %+v", listed)
	}

	if _, err := env.access.ReplaceGrants(ctx, admin(), keyR1S1, nil); err != nil {
		t.Fatalf("clear grants: %v", err)
	}
	ok, _ := env.access.CanAccess(ctx, engineer("anyone@example.com"), keyR1S1)
	if !ok {
		t.Fatalf("clearing grants should reopen the subsection")
	}
}

func TestReplaceGrantsIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.access.ReplaceGrants(ctx, admin(), keyR1S1, []string{"keep@example.com"}); err != nil {
		t.Fatalf("replace grants: %v", err)
	}
	_, err := env.access.ReplaceGrants(ctx, admin(), keyR1S1, []string{"ok@example.com", "not-an-email"})
	expectKind(t, err, KindValidation)

	listed, _ := env.access.ListGrants(ctx, admin(), keyR1S1)
	if len(listed) != 1 || listed[0].Email != "keep@example.com" {
		t.Fatalf("failed replace must keep previous grants, got %+v", listed)
	}
}

func TestGrantAdministrationRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.access.ReplaceGrants(ctx, reviewer("qc@example.com"), keyR1S1, []string{"a@x.com"})
	expectKind(t, err, KindAuthorization)
	_, err = env.access.ListGrants(ctx, engineer("eng@example.com"), keyR1S1)
	expectKind(t, err, KindAuthorization)

	_, err = env.access.ReplaceGrants(ctx, admin(), models.SubsectionKey{RouteID: "R9", SubsectionID: "S1"}, []string{"a@x.com"})
	expectKind(t, err, KindNotFound)
}
