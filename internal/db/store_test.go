package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zhouzirui/receptionist-widget/internal/model/profile"
)

var _ profile.Store = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "widget.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestGetMissingKey(t *testing.T) {
	store := newTestStore(t)

	value, ok, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || value != "" {
		t.Fatalf("Get() = %q, %v, want empty miss", value, ok)
	}
}

func TestSetOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, profile.KeyName, "Dana"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, profile.KeyName, "Sam"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, ok, err := store.Get(ctx, profile.KeyName)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || value != "Sam" {
		t.Fatalf("Get() = %q, %v, want %q", value, ok, "Sam")
	}
}

func TestProfileRoundTripSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widget.sqlite")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := profile.Save(ctx, store, profile.Profile{Name: "Dana", BusinessType: "dental clinic"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	_ = store.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer reopened.Close()

	got, err := profile.Load(ctx, reopened)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Name != "Dana" || got.BusinessType != "dental clinic" {
		t.Fatalf("Load() = %+v", got)
	}
}
