package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/sha3"
)

// ledgerFileExt is the extension of per-source ledger files.
const ledgerFileExt = ".jsonl"

// maxLineSize bounds a single encoded record.
const maxLineSize = 1 << 20

// FileStore keeps one JSON-lines file per data source inside a directory.
//
// The file name is the SHA3-256 of the source identifier so that arbitrary
// URIs map to safe names. Replace writes a temporary file, syncs it, and
// renames it over the previous one, so a crash leaves either the old or the
// new ledger but never a mix of both.
type FileStore struct {
	dir string
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir. The directory is created on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the ledger file used for sourceID.
func (s *FileStore) Path(sourceID string) string {
	sum := sha3.Sum256([]byte(sourceID))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+ledgerFileExt)
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, sourceID string) (map[string]Record, error) {
	f, err := os.Open(s.Path(sourceID))
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]Record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	return decodeRecords(ctx, f)
}

// decodeRecords reads JSON lines. A later line for the same identifier wins.
func decodeRecords(ctx context.Context, r io.Reader) (map[string]Record, error) {
	records := make(map[string]Record)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptLedger, line, err)
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: line %d: empty identifier", ErrCorruptLedger, line)
		}
		records[rec.ID] = rec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return records, nil
}

// Replace implements Store.
func (s *FileStore) Replace(ctx context.Context, sourceID string, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
		}
	}

	if err := writeFileAtomic(s.Path(sourceID), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path with data durably: temp file, fsync, rename, directory fsync.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		_ = tmp.Close()
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	renamed = true

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
