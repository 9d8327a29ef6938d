package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/vigilwaf/vigil/internal/domain/record"
)

func TestAppendAndLoadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	rec := record.Record{Reason: "r1", Timestamp: time.Now().UTC(), Method: "GET", URL: "/", Verdict: record.VerdictSafe}
	if err := j.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := j.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 1 || got[0].Reason != "r1" {
		t.Fatalf("got %+v", got)
	}
}

func TestLoadAllSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := j.Append(record.Record{Reason: "good"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := j.file.WriteString("{not valid json\n"); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if err := j.Append(record.Record{Reason: "also-good"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	j.Close()

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()

	got, err := j2.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 well-formed records, got %d", len(got))
	}
}

func TestAppendIsDurableAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := j.Append(record.Record{Reason: string(rune('a' + i))}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()
	got, err := j2.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 records, got %d", len(got))
	}
}
