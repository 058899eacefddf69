package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"rwandabill/models"
)

func storesUnderTest(t *testing.T) map[string]*Store {
	t.Helper()
	kv, err := OpenSQLite(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return map[string]*Store{
		"memory": NewMemoryStore(),
		"sqlite": NewStore(kv, "test"),
	}
}

func TestStoreTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.GetToken(ctx); !errors.Is(err, ErrAbsent) {
				t.Fatalf("empty store: err = %v, want ErrAbsent", err)
			}
			if err := store.SetToken(ctx, "first"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := store.SetToken(ctx, "second"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, err := store.GetToken(ctx)
			if err != nil || got != "second" {
				t.Fatalf("get = %q, %v", got, err)
			}
			for i := 0; i < 2; i++ {
				if err := store.ClearToken(ctx); err != nil {
					t.Fatalf("clear #%d: %v", i+1, err)
				}
			}
			if _, err := store.GetToken(ctx); !errors.Is(err, ErrAbsent) {
				t.Fatalf("after clear: err = %v", err)
			}
		})
	}
}

func TestStoreIdentityLifecycle(t *testing.T) {
	ctx := context.Background()
	identity := models.NewIdentity(models.Profile{ID: "9", Email: "admin@example.com", Group: models.DefaultGroup},
		models.AdminAccess{Service: models.ServiceWater})
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.SetIdentity(ctx, identity); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, err := store.GetIdentity(ctx)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.ID != "9" || got.Role() != models.RoleAdmin {
				t.Fatalf("identity = %+v", got)
			}
			if svc, _ := got.Service(); svc != models.ServiceWater {
				t.Fatalf("service = %q", svc)
			}
			for i := 0; i < 2; i++ {
				if err := store.ClearIdentity(ctx); err != nil {
					t.Fatalf("clear #%d: %v", i+1, err)
				}
			}
			if _, err := store.GetIdentity(ctx); !errors.Is(err, ErrAbsent) {
				t.Fatalf("after clear: err = %v", err)
			}
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")
	kv, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewStore(kv, "ns").SetToken(ctx, "persisted"); err != nil {
		t.Fatal(err)
	}
	_ = kv.Close()

	kv, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()
	got, err := NewStore(kv, "ns").GetToken(ctx)
	if err != nil || got != "persisted" {
		t.Fatalf("after reopen = %q, %v", got, err)
	}
	if _, err := NewStore(kv, "other").GetToken(ctx); !errors.Is(err, ErrAbsent) {
		t.Fatalf("namespaces leak: %v", err)
	}
}

func TestKeysFor(t *testing.T) {
	if k := KeysFor(""); k.Token != "water_payment_auth_token" || k.Identity != "water_payment_user" {
		t.Fatalf("default keys = %+v", k)
	}
}
