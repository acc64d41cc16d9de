package history

import (
	"path/filepath"
	"testing"
)

func TestRecordAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	sink, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	if err := sink.Record(7, "svc", EventSpawn, "pid=123"); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := sink.db.QueryRow(`SELECT COUNT(*) FROM events WHERE process_id = ?`, 7).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
}
