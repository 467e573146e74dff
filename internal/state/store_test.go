package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	s := tempDB(t)

	id, err := s.Save("e1", []byte(`{"v":1}`), "create")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty version ID")
	}

	blob, err := s.Load("e1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(blob) != `{"v":1}` {
		t.Fatalf("unexpected blob %s", blob)
	}
}

func TestLoadNotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.Load("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveEmptyEntity(t *testing.T) {
	s := tempDB(t)
	if _, err := s.Save("", []byte("x"), "create"); err == nil {
		t.Fatal("expected error for empty entity id")
	}
}

func TestSaveChainsParents(t *testing.T) {
	s := tempDB(t)

	v1, _ := s.Save("e1", []byte("one"), "create")
	v2, err := s.Save("e1", []byte("two"), "interact")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, err := s.GetVersion(v2)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if rec.ParentID != v1 {
		t.Fatalf("expected parent %s, got %s", v1, rec.ParentID)
	}
	if !rec.Active {
		t.Fatal("expected newest version to be active")
	}
	if rec.Reason != "interact" {
		t.Fatalf("expected reason interact, got %s", rec.Reason)
	}
}

func TestEntitiesAreIndependent(t *testing.T) {
	s := tempDB(t)
	s.Save("a", []byte("a1"), "create")
	s.Save("b", []byte("b1"), "create")
	s.Save("a", []byte("a2"), "tick")

	blob, _ := s.Load("b")
	if string(blob) != "b1" {
		t.Fatalf("expected b1, got %s", blob)
	}
	ids, err := s.Entities()
	if err != nil {
		t.Fatalf("Entities: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected entities %v", ids)
	}
}

func TestRollback(t *testing.T) {
	s := tempDB(t)

	v1, _ := s.Save("e1", []byte("one"), "create")
	s.Save("e1", []byte("two"), "interact")

	if err := s.Rollback("e1", v1); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	blob, _ := s.Load("e1")
	if string(blob) != "one" {
		t.Fatalf("expected one after rollback, got %s", blob)
	}

	// next save parents on the rolled-back version
	v3, _ := s.Save("e1", []byte("three"), "interact")
	rec, _ := s.GetVersion(v3)
	if rec.ParentID != v1 {
		t.Fatalf("expected parent %s, got %s", v1, rec.ParentID)
	}
}

func TestRollbackForeignVersion(t *testing.T) {
	s := tempDB(t)
	s.Save("a", []byte("a1"), "create")
	vb, _ := s.Save("b", []byte("b1"), "create")

	err := s.Rollback("a", vb)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListVersions(t *testing.T) {
	s := tempDB(t)
	s.Save("e1", []byte("one"), "create")
	s.Save("e1", []byte("two"), "interact")
	last, _ := s.Save("e1", []byte("three"), "interact")
	s.Save("other", []byte("x"), "create")

	versions, err := s.ListVersions("e1", 10)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	if versions[0].VersionID != last {
		t.Fatalf("expected newest first, got %s", versions[0].VersionID)
	}

	limited, _ := s.ListVersions("e1", 1)
	if len(limited) != 1 {
		t.Fatalf("expected 1 version, got %d", len(limited))
	}
}

func TestGetVersionNotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetVersion("nonexistent-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestDBAccessor(t *testing.T) {
	s := tempDB(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}
