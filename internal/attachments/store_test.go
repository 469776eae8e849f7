package attachments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rohits-web03/opsdash/internal/config"
	"github.com/rohits-web03/opsdash/internal/models"
)

const tenMB = 10 << 20

// flakyBackend wraps a real backend and injects failures.
type flakyBackend struct {
	Backend
	failPutAfter int // fail once this many puts succeeded; negative disables
	puts         int
	failDelete   bool
}

func (b *flakyBackend) Put(ctx context.Context, name string, r io.Reader, size int64, ct string) (string, error) {
	if b.failPutAfter >= 0 && b.puts >= b.failPutAfter {
		return "", errors.New("disk full")
	}
	b.puts++
	return b.Backend.Put(ctx, name, r, size, ct)
}

func (b *flakyBackend) Delete(ctx context.Context, path string) error {
	if b.failDelete {
		return errors.New("permission denied")
	}
	return b.Backend.Delete(ctx, path)
}

func newTestStore(t *testing.T, max int64) (*Store, *flakyBackend, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	local, err := NewLocalBackend(dir)
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	backend := &flakyBackend{Backend: local, failPutAfter: -1}
	store := NewStore(backend, Options{MaxFileSize: max, AllowedMimeTypes: config.DefaultAllowedMimeTypes}, nil)
	return store, backend, local.Dir()
}

func fileOf(name, mimeType string, data []byte) File {
	return File{OriginalName: name, MimeType: mimeType, Size: int64(len(data)), Content: bytes.NewReader(data)}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(entries)
}

func readAll(t *testing.T, d *Download) []byte {
	t.Helper()
	defer d.Content.Close()
	b, err := io.ReadAll(d.Content)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	return b
}

func TestSaveAndRetrievePDF(t *testing.T) {
	store, _, _ := newTestStore(t, tenMB)
	ctx := context.Background()

	data := bytes.Repeat([]byte{0x25}, 2_000_000)
	att, err := store.Save(ctx, fileOf("invoice.pdf", "application/pdf", data))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if att.OriginalName != "invoice.pdf" || att.MimeType != "application/pdf" || att.Size != 2_000_000 {
		t.Errorf("unexpected metadata %+v", att)
	}
	if !strings.HasSuffix(att.Filename, ".pdf") || att.Filename == "invoice.pdf" {
		t.Errorf("Filename = %q, want generated name ending in .pdf", att.Filename)
	}
	if att.UploadDate.IsZero() {
		t.Error("UploadDate not set")
	}

	task := &models.Task{Attachments: models.Attachments{att}}
	d, err := store.Retrieve(ctx, task, att.Filename)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if d.OriginalName != "invoice.pdf" || d.MimeType != "application/pdf" {
		t.Errorf("download headers = %q %q", d.OriginalName, d.MimeType)
	}
	if got := readAll(t, d); !bytes.Equal(got, data) {
		t.Errorf("retrieved %d bytes, not identical to the %d uploaded", len(got), len(data))
	}
}

func TestSaveRejectsOversizedFile(t *testing.T) {
	store, _, dir := newTestStore(t, tenMB)

	_, err := store.Save(context.Background(), fileOf("big.pdf", "application/pdf", make([]byte, 11<<20)))
	if !errors.Is(err, ErrFileTooLarge) || !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
	if !strings.Contains(err.Error(), "10MB") {
		t.Errorf("message %q does not mention the limit", err.Error())
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("%d files written, want 0", n)
	}
}

func TestSaveEnforcesLimitOnActualBytes(t *testing.T) {
	store, _, dir := newTestStore(t, 1024)

	f := fileOf("notes.txt", "text/plain", make([]byte, 4096))
	f.Size = 10 // client lies about the size

	_, err := store.Save(context.Background(), f)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
	if !strings.Contains(err.Error(), "1KB") {
		t.Errorf("message %q does not mention the limit", err.Error())
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("%d files left behind, want 0", n)
	}
}

func TestSaveRejectsUnsupportedType(t *testing.T) {
	store, _, dir := newTestStore(t, tenMB)

	_, err := store.Save(context.Background(), fileOf("setup.exe", "application/x-msdownload", []byte("MZ")))
	if !errors.Is(err, ErrUnsupportedFileType) || !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrUnsupportedFileType", err)
	}
	if !strings.Contains(err.Error(), "application/pdf") {
		t.Errorf("message %q does not list the allowed types", err.Error())
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("%d files written, want 0", n)
	}
}

func TestValidate(t *testing.T) {
	store, _, _ := newTestStore(t, tenMB)

	tests := []struct {
		name string
		file File
		want error
	}{
		{"ok", File{OriginalName: "a.png", MimeType: "image/png", Size: 10}, nil},
		{"mime params and case", File{OriginalName: "a.txt", MimeType: "Text/Plain; charset=utf-8", Size: 10}, nil},
		{"exact limit", File{OriginalName: "a.zip", MimeType: "application/zip", Size: tenMB}, nil},
		{"blank name", File{OriginalName: "  ", MimeType: "image/png", Size: 10}, ErrMissingName},
		{"over limit", File{OriginalName: "a.zip", MimeType: "application/zip", Size: tenMB + 1}, ErrFileTooLarge},
		{"empty type", File{OriginalName: "a", MimeType: "", Size: 1}, ErrUnsupportedFileType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Validate(tt.file)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStorageNamesNeverCollide(t *testing.T) {
	store, _, _ := newTestStore(t, tenMB)
	ctx := context.Background()

	task := &models.Task{}
	payloads := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, p := range payloads {
		att, err := store.Save(ctx, fileOf("report.txt", "text/plain", p))
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		task.Attachments = append(task.Attachments, att)
	}

	seen := map[string]bool{}
	for i, att := range task.Attachments {
		if seen[att.Filename] {
			t.Fatalf("duplicate storage name %q", att.Filename)
		}
		seen[att.Filename] = true

		d, err := store.Retrieve(ctx, task, att.Filename)
		if err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
		if got := readAll(t, d); !bytes.Equal(got, payloads[i]) || d.OriginalName != "report.txt" {
			t.Errorf("attachment %d: got %q named %q", i, got, d.OriginalName)
		}
	}
}

func TestStorageNameIgnoresClientPath(t *testing.T) {
	store, _, dir := newTestStore(t, tenMB)

	att, err := store.Save(context.Background(), fileOf("../../etc/evil.PDF", "application/pdf", []byte("x")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.ContainsAny(att.Filename, `/\`) || strings.Contains(att.Filename, "evil") {
		t.Errorf("Filename %q carries client input", att.Filename)
	}
	if !strings.HasSuffix(att.Filename, ".pdf") {
		t.Errorf("Filename %q lost the extension", att.Filename)
	}
	if filepath.Dir(att.Path) != dir {
		t.Errorf("Path %q is outside %q", att.Path, dir)
	}
	if att.OriginalName != "../../etc/evil.PDF" {
		t.Errorf("OriginalName = %q", att.OriginalName)
	}

	odd, err := store.Save(context.Background(), fileOf("archive.t ar;rm", "application/zip", []byte("x")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.Contains(odd.Filename, ".") {
		t.Errorf("unsafe extension kept: %q", odd.Filename)
	}
}

func TestSaveReportsWriteFailure(t *testing.T) {
	store, backend, dir := newTestStore(t, tenMB)
	backend.failPutAfter = 0

	_, err := store.Save(context.Background(), fileOf("a.txt", "text/plain", []byte("hello")))
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("%d files written, want 0", n)
	}
}

func TestSaveAllIsAllOrNothing(t *testing.T) {
	store, backend, dir := newTestStore(t, tenMB)
	ctx := context.Background()

	files := []File{
		fileOf("a.txt", "text/plain", []byte("a")),
		fileOf("b.exe", "application/x-msdownload", []byte("b")),
	}
	if _, err := store.SaveAll(ctx, files); !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("err = %v, want ErrUnsupportedFileType", err)
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("validation failure wrote %d files", n)
	}

	backend.failPutAfter = 1
	files[1] = fileOf("b.txt", "text/plain", []byte("b"))
	if _, err := store.SaveAll(ctx, files); !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("write failure left %d files, want the batch rolled back", n)
	}
}

func TestRetrieveErrors(t *testing.T) {
	store, _, _ := newTestStore(t, tenMB)
	ctx := context.Background()

	att, err := store.Save(ctx, fileOf("a.txt", "text/plain", []byte("a")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	task := &models.Task{Attachments: models.Attachments{att}}

	if _, err := store.Retrieve(ctx, task, "nope.txt"); !errors.Is(err, ErrAttachmentNotFound) {
		t.Errorf("err = %v, want ErrAttachmentNotFound", err)
	}

	if err := os.Remove(att.Path); err != nil {
		t.Fatal(err)
	}
	_, err = store.Retrieve(ctx, task, att.Filename)
	if !errors.Is(err, ErrFileMissing) || errors.Is(err, ErrAttachmentNotFound) {
		t.Errorf("err = %v, want ErrFileMissing only", err)
	}
}

func TestRemove(t *testing.T) {
	store, _, dir := newTestStore(t, tenMB)
	ctx := context.Background()

	a, _ := store.Save(ctx, fileOf("a.txt", "text/plain", []byte("a")))
	b, _ := store.Save(ctx, fileOf("b.txt", "text/plain", []byte("b")))
	task := &models.Task{Attachments: models.Attachments{a, b}}

	if _, err := store.Remove(ctx, task, "ghost.pdf"); !errors.Is(err, ErrAttachmentNotFound) {
		t.Fatalf("err = %v, want ErrAttachmentNotFound", err)
	}
	if len(task.Attachments) != 2 {
		t.Fatalf("list changed on failed remove: %v", task.Attachments)
	}

	report, err := store.Remove(ctx, task, a.Filename)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if report.Err() != nil || len(report.Deleted) != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(task.Attachments) != 1 || task.Attachments[0].Filename != b.Filename {
		t.Errorf("Attachments = %v", task.Attachments)
	}
	if n := countFiles(t, dir); n != 1 {
		t.Errorf("%d files on disk, want 1", n)
	}
	if _, err := store.Retrieve(ctx, task, a.Filename); !errors.Is(err, ErrAttachmentNotFound) {
		t.Errorf("Retrieve after Remove: %v", err)
	}
}

func TestRemoveDropsMetadataWhenDiskDeleteFails(t *testing.T) {
	store, backend, dir := newTestStore(t, tenMB)
	ctx := context.Background()

	a, _ := store.Save(ctx, fileOf("a.txt", "text/plain", []byte("a")))
	task := &models.Task{Attachments: models.Attachments{a}}
	backend.failDelete = true

	report, err := store.Remove(ctx, task, a.Filename)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !errors.Is(report.Err(), ErrPartialCleanup) {
		t.Errorf("report.Err() = %v, want ErrPartialCleanup", report.Err())
	}
	if len(task.Attachments) != 0 {
		t.Errorf("Attachments = %v, want empty", task.Attachments)
	}
	if _, err := store.Retrieve(ctx, task, a.Filename); !errors.Is(err, ErrAttachmentNotFound) {
		t.Errorf("Retrieve after failed delete: %v", err)
	}
	if n := countFiles(t, dir); n != 1 {
		t.Errorf("expected the orphaned file to remain, found %d", n)
	}
}

func TestRemoveAll(t *testing.T) {
	store, backend, dir := newTestStore(t, tenMB)
	ctx := context.Background()

	task := &models.Task{}
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		att, err := store.Save(ctx, fileOf(name, "text/plain", []byte(name)))
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		task.Attachments = append(task.Attachments, att)
	}

	report := store.RemoveAll(ctx, task)
	if report.Err() != nil || len(report.Deleted) != 3 {
		t.Errorf("report = %+v", report)
	}
	if len(task.Attachments) != 0 {
		t.Errorf("Attachments = %v", task.Attachments)
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("%d files left", n)
	}

	// best effort: failures are reported, the list is still emptied
	att, _ := store.Save(ctx, fileOf("d.txt", "text/plain", []byte("d")))
	task.Attachments = models.Attachments{att}
	backend.failDelete = true
	report = store.RemoveAll(ctx, task)
	if len(report.Failed) != 1 || len(task.Attachments) != 0 {
		t.Errorf("report = %+v, attachments = %v", report, task.Attachments)
	}
}

func TestReplaceBatch(t *testing.T) {
	store, _, dir := newTestStore(t, tenMB)
	ctx := context.Background()

	keep, _ := store.Save(ctx, fileOf("keep.txt", "text/plain", []byte("keep")))
	drop, _ := store.Save(ctx, fileOf("drop.txt", "text/plain", []byte("drop")))
	task := &models.Task{Attachments: models.Attachments{keep, drop}}

	delta, err := store.ReplaceBatch(ctx, task,
		[]File{fileOf("new.png", "image/png", []byte("png"))},
		[]string{drop.Filename, drop.Filename})
	if err != nil {
		t.Fatalf("ReplaceBatch: %v", err)
	}
	if len(task.Attachments) != 2 {
		t.Error("ReplaceBatch must not modify the task")
	}
	if len(delta.Added) != 1 || len(delta.Removed) != 1 || delta.Removed[0] != drop.Filename {
		t.Fatalf("delta = %+v", delta)
	}

	got := delta.Apply(task.Attachments)
	if len(got) != 2 || got[0].Filename != keep.Filename || got[1].OriginalName != "new.png" {
		t.Errorf("applied list = %v", got)
	}
	if _, err := os.Stat(drop.Path); !os.IsNotExist(err) {
		t.Errorf("removed file still on disk: %v", err)
	}
	if n := countFiles(t, dir); n != 2 {
		t.Errorf("%d files on disk, want 2", n)
	}
}

func TestReplaceBatchFailureAppliesNoRemovals(t *testing.T) {
	store, backend, dir := newTestStore(t, tenMB)
	ctx := context.Background()

	old, _ := store.Save(ctx, fileOf("old.txt", "text/plain", []byte("old")))
	task := &models.Task{Attachments: models.Attachments{old}}

	if _, err := store.ReplaceBatch(ctx, task, nil, []string{"ghost.pdf"}); !errors.Is(err, ErrAttachmentNotFound) {
		t.Fatalf("err = %v, want ErrAttachmentNotFound", err)
	}

	backend.failPutAfter = backend.puts + 1
	_, err := store.ReplaceBatch(ctx, task,
		[]File{fileOf("n1.txt", "text/plain", []byte("1")), fileOf("n2.txt", "text/plain", []byte("2"))},
		[]string{old.Filename})
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
	if _, err := os.Stat(old.Path); err != nil {
		t.Errorf("removal applied despite failure: %v", err)
	}
	if n := countFiles(t, dir); n != 1 {
		t.Errorf("%d files on disk, want only the original", n)
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		10 << 20:  "10MB",
		1 << 20:   "1MB",
		512 << 10: "512KB",
		1500:      "1500 bytes",
	}
	for in, want := range tests {
		if got := FormatSize(in); got != want {
			t.Errorf("FormatSize(%d) = %q, want %q", in, got, want)
		}
	}
}
