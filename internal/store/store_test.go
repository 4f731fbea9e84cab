package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateFreshThenIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed || result.From != 0 || result.Version != 1 {
		t.Errorf("first Migrate() = %+v, want 0 -> 1 changed", result)
	}

	result, err = db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed || result.From != 1 || result.Version != 1 {
		t.Errorf("second Migrate() = %+v, want 1 -> 1 unchanged", result)
	}
}

func TestMigrateRefusesDirty(t *testing.T) {
	db := testDB(t)
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); !errors.Is(err, ErrDirty) {
		t.Errorf("Migrate() error = %v, want ErrDirty", err)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	db := testDB(t)

	got, err := db.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("LoadCredentials() on empty db = %+v, want nil", got)
	}

	if err := db.SaveCredentials(&Credentials{Token: "t1", UserID: 7, UserName: "Aki", APIURL: "http://x"}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveCredentials(&Credentials{Token: "t2", UserID: 7, UserName: "Aki S."}); err != nil {
		t.Fatal(err)
	}

	got, err = db.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Token != "t2" || got.UserName != "Aki S." {
		t.Errorf("LoadCredentials() = %+v, want latest save (t2, Aki S.)", got)
	}

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM credentials`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("credentials rows = %d, want 1", rows)
	}

	if err := db.ClearCredentials(); err != nil {
		t.Fatal(err)
	}
	got, _ = db.LoadCredentials()
	if got != nil {
		t.Errorf("credentials after clear = %+v, want nil", got)
	}
}

func TestDraftLifecycle(t *testing.T) {
	db := testDB(t)

	if d, err := db.LoadDraft(42); err != nil || d != nil {
		t.Fatalf("LoadDraft(42) = %+v, %v; want nil, nil", d, err)
	}

	if err := db.SaveDraft(42, "hello", ""); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveDraft(42, "hello again", "network error"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveDraft(43, "other", ""); err != nil {
		t.Fatal(err)
	}

	d, err := db.LoadDraft(42)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.Body != "hello again" || d.LastError != "network error" {
		t.Errorf("LoadDraft(42) = %+v, want updated body and error", d)
	}

	drafts, err := db.ListDrafts()
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 2 {
		t.Errorf("ListDrafts() len = %d, want 2", len(drafts))
	}

	if err := db.ClearDraft(42); err != nil {
		t.Fatal(err)
	}
	if d, _ := db.LoadDraft(42); d != nil {
		t.Errorf("draft after clear = %+v, want nil", d)
	}
	if d, _ := db.LoadDraft(43); d == nil {
		t.Error("clearing 42 removed draft 43")
	}

	if err := db.ClearDrafts(); err != nil {
		t.Fatal(err)
	}
	if drafts, _ := db.ListDrafts(); len(drafts) != 0 {
		t.Errorf("ListDrafts() after ClearDrafts = %+v", drafts)
	}
}
