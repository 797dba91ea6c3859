package sqlstore

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/roach88/bindery/internal/transport"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bindery.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	_, path := openTemp(t)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindery.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		if err := s.Put(context.Background(), "/books", "b", map[string]any{"i": i}); err != nil {
			t.Fatalf("Put() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	got, err := s.Get(context.Background(), "/books", "b")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got["i"] != float64(2) {
		t.Errorf("i = %v, want 2", got["i"])
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	if _, err := Open("/nonexistent/dir/bindery.db"); err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s, _ := openTemp(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
		"user_version": "1",
	} {
		got, err := s.pragma(name)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestMigration_AddsSeqIndex(t *testing.T) {
	s, _ := openTemp(t)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
		"idx_resources_collection_seq",
	).Scan(&name)
	if err != nil {
		t.Errorf("seq index not found: %v", err)
	}
}

func TestCRUD(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	if err := s.Put(ctx, "/books", "2", map[string]any{"id": "2", "title": "B"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "/books", "1", map[string]any{"id": "1", "title": "A"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "/films", "1", map[string]any{"id": "1"}); err != nil {
		t.Fatal(err)
	}

	// Replacing keeps the insertion position.
	if err := s.Put(ctx, "/books", "2", map[string]any{"id": "2", "title": "B2"}); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx, "/books")
	if err != nil {
		t.Fatal(err)
	}
	want := []map[string]any{
		{"id": "2", "title": "B2"},
		{"id": "1", "title": "A"},
	}
	if !reflect.DeepEqual(list, want) {
		t.Errorf("List() = %v, want %v", list, want)
	}

	if err := s.Delete(ctx, "/books", "2"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "/books", "2"); !errors.Is(err, transport.ErrNotFound) {
		t.Errorf("Get() after Delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "/books", "2"); !errors.Is(err, transport.ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}

	empty, err := s.List(ctx, "/nothing")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("List() of unknown collection = %v", empty)
	}
}

func TestList_InMemoryInsertionOrder(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	for _, id := range []string{"10", "9", "b", "A"} {
		if err := s.Put(ctx, "/books", id, map[string]any{"id": id}); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.List(ctx, "/books")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	var got []string
	for _, attrs := range list {
		got = append(got, attrs["id"].(string))
	}
	want := []string{"10", "9", "b", "A"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() ids = %v, want %v", got, want)
	}
}

func TestREST_OverSQLite(t *testing.T) {
	s, _ := openTemp(t)
	rest := transport.NewREST(s, transport.WithIDGenerator(transport.NewFixedGenerator("b-1")))
	ctx := context.Background()

	resp, err := rest.Do(ctx, &transport.Request{Method: transport.Create, URL: "/books", Body: []byte(`{"title":"Dune"}`)})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.Status)
	}

	resp, err = rest.Do(ctx, &transport.Request{Method: transport.Read, URL: "/books"})
	if err != nil {
		t.Fatal(err)
	}
	want := []any{map[string]any{"id": "b-1", "title": "Dune"}}
	if !reflect.DeepEqual(resp.JSON, want) {
		t.Errorf("read = %v, want %v", resp.JSON, want)
	}

	_, err = rest.Do(ctx, &transport.Request{Method: transport.Delete, URL: "/books/b-1"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = rest.Do(ctx, &transport.Request{Method: transport.Delete, URL: "/books/b-1"})
	if !transport.IsStatus(err, http.StatusNotFound) {
		t.Errorf("second delete = %v, want 404", err)
	}
}
