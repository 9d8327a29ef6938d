// Package journal implements the Log Journal: a single append-only
// newline-delimited-JSON file, synchronously flushed before every append
// call returns. It deliberately carries no rotation and no retention —
// journal durability and size management are the operator's job, not the
// pipeline's; the pipeline's job is to never acknowledge a request it did
// not durably record.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/vigilwaf/vigil/internal/domain/record"
)

// FileJournal is the only Journal implementation Vigil ships.
type FileJournal struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (creating if absent) the journal file at path for appending.
func Open(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &FileJournal{file: f}, nil
}

// Append writes rec as one JSON line and fsyncs before returning, so that by
// the time Append returns without error, rec is durable on disk.
func (j *FileJournal) Append(rec record.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal record: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(data); err != nil {
		return fmt.Errorf("journal: write record: %w", err)
	}
	return j.file.Sync()
}

// LoadAll reads every well-formed record currently in the journal, in
// append order. Malformed lines (partial writes from a prior crash,
// corruption) are skipped rather than aborting the read.
func (j *FileJournal) LoadAll() ([]record.Record, error) {
	j.mu.Lock()
	path := j.file.Name()
	j.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: reopen for read: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []record.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("journal: scan: %w", err)
	}
	return records, nil
}

// Close closes the underlying file.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
