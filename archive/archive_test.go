package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/justapithecus/sounder/types"
)

type putCall struct {
	bucket      string
	key         string
	contentType string
	body        []byte
}

type stubPutter struct {
	calls []putCall
	err   error
}

func (p *stubPutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if p.err != nil {
		return nil, p.err
	}
	body, _ := io.ReadAll(params.Body)
	p.calls = append(p.calls, putCall{
		bucket:      *params.Bucket,
		key:         *params.Key,
		contentType: *params.ContentType,
		body:        body,
	})
	return &s3.PutObjectOutput{}, nil
}

func fixedArchiver(t *testing.T, cfg Config, putter ObjectPutter) *Archiver {
	t.Helper()
	a, err := NewWithClient(cfg, putter)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	return a
}

func TestArchiveSnapshot(t *testing.T) {
	putter := &stubPutter{}
	a := fixedArchiver(t, Config{Bucket: "archives", Prefix: "sounder"}, putter)

	snap := &types.ProgressSnapshot{
		Status:             types.StatusCompleted,
		ProgressPercentage: 100,
		FilesProcessed:     200,
		TotalFiles:         200,
	}
	if err := a.ArchiveSnapshot(t.Context(), "vault_notes", "client-001", snap); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if len(putter.calls) != 1 {
		t.Fatalf("expected 1 put, got %d", len(putter.calls))
	}
	call := putter.calls[0]
	if call.bucket != "archives" {
		t.Errorf("bucket: got %q", call.bucket)
	}
	want := "sounder/collection=vault_notes/20260830T120000Z/snapshot.json"
	if call.key != want {
		t.Errorf("key: got %q, want %q", call.key, want)
	}
	if call.contentType != "application/json" {
		t.Errorf("content type: got %q", call.contentType)
	}

	var doc map[string]any
	if err := json.Unmarshal(call.body, &doc); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if doc["collection_id"] != "vault_notes" {
		t.Errorf("collection_id: got %v", doc["collection_id"])
	}
}

func TestArchiveSnapshot_RequiresCollectionAndSnapshot(t *testing.T) {
	a := fixedArchiver(t, Config{Bucket: "archives"}, &stubPutter{})

	if err := a.ArchiveSnapshot(t.Context(), "", "c", types.NewSnapshot()); err == nil {
		t.Error("expected error for empty collection id")
	}
	if err := a.ArchiveSnapshot(t.Context(), "vault_notes", "c", nil); err == nil {
		t.Error("expected error for nil snapshot")
	}
}

func TestArchiveSnapshot_PutFailure(t *testing.T) {
	putter := &stubPutter{err: errors.New("access denied")}
	a := fixedArchiver(t, Config{Bucket: "archives"}, putter)

	err := a.ArchiveSnapshot(t.Context(), "vault_notes", "c", types.NewSnapshot())
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected put error surfaced, got %v", err)
	}
}

func TestArchiveJournal(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "vault_notes.frames")
	if err := os.WriteFile(journalPath, []byte("frame-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	putter := &stubPutter{}
	a := fixedArchiver(t, Config{Bucket: "archives"}, putter)

	if err := a.ArchiveJournal(t.Context(), "vault_notes", journalPath); err != nil {
		t.Fatalf("archive journal: %v", err)
	}

	if len(putter.calls) != 1 {
		t.Fatalf("expected 1 put, got %d", len(putter.calls))
	}
	if got := string(putter.calls[0].body); got != "frame-bytes" {
		t.Errorf("body: got %q", got)
	}
	if !strings.HasSuffix(putter.calls[0].key, "/journal.frames") {
		t.Errorf("key: got %q", putter.calls[0].key)
	}
}

func TestArchiveJournal_MissingFileIsNoop(t *testing.T) {
	putter := &stubPutter{}
	a := fixedArchiver(t, Config{Bucket: "archives"}, putter)

	if err := a.ArchiveJournal(t.Context(), "vault_notes", filepath.Join(t.TempDir(), "absent.frames")); err != nil {
		t.Fatalf("missing journal must be a no-op, got %v", err)
	}
	if len(putter.calls) != 0 {
		t.Errorf("expected no puts, got %d", len(putter.calls))
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (&Config{}).Validate(); err == nil {
		t.Error("expected error for missing bucket")
	}
	if err := (&Config{Bucket: "b"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
