// Package attachments turns uploaded files into stored objects plus metadata
// and keeps a task's attachment list in step with what the backend holds.
//
// Bytes are always written before metadata is handed back, so a caller never
// records an entry for a failed write. Deletes are best effort: a backend
// failure is reported in a CleanupReport and the metadata is dropped anyway.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rohits-web03/opsdash/internal/config"
	"github.com/rohits-web03/opsdash/internal/logger"
	"github.com/rohits-web03/opsdash/internal/models"
)

// File is one uploaded part as declared by the client.
type File struct {
	OriginalName string
	MimeType     string
	Size         int64
	Content      io.Reader
}

type Options struct {
	MaxFileSize      int64
	AllowedMimeTypes []string
}

type Store struct {
	backend  Backend
	maxSize  int64
	allowed  map[string]struct{}
	types    []string
	log      *logger.Logger
	now      func() time.Time
	newToken func() string
}

func NewStore(backend Backend, opts Options, log *logger.Logger) *Store {
	allowed := make(map[string]struct{}, len(opts.AllowedMimeTypes))
	types := make([]string, 0, len(opts.AllowedMimeTypes))
	for _, t := range opts.AllowedMimeTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if _, dup := allowed[t]; t == "" || dup {
			continue
		}
		allowed[t] = struct{}{}
		types = append(types, t)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		backend:  backend,
		maxSize:  opts.MaxFileSize,
		allowed:  allowed,
		types:    types,
		log:      log,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

// NewBackend picks the backend named by cfg.Driver. An empty driver means local.
func NewBackend(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalBackend(cfg.UploadDir)
	case "s3":
		return NewS3Backend(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func (s *Store) MaxFileSize() int64 {
	return s.maxSize
}

// Validate checks the declared name, size and type of f. It never touches the backend.
func (s *Store) Validate(f File) error {
	if strings.TrimSpace(f.OriginalName) == "" {
		return &validationError{kind: ErrMissingName, msg: ErrMissingName.Error()}
	}
	if f.Size > s.maxSize {
		return s.tooLarge(f.OriginalName)
	}
	if _, ok := s.allowed[normalizeMimeType(f.MimeType)]; !ok {
		return &validationError{
			kind: ErrUnsupportedFileType,
			msg: fmt.Sprintf("%s: %q is not allowed, allowed types are %s",
				ErrUnsupportedFileType, f.MimeType, strings.Join(s.types, ", ")),
		}
	}
	return nil
}

func (s *Store) tooLarge(name string) error {
	return &validationError{
		kind: ErrFileTooLarge,
		msg:  fmt.Sprintf("%s: %q exceeds the %s limit", ErrFileTooLarge, name, FormatSize(s.maxSize)),
	}
}

// Save validates and writes one file and returns its metadata. It does not
// attach the metadata to any task.
func (s *Store) Save(ctx context.Context, f File) (models.Attachment, error) {
	if err := s.Validate(f); err != nil {
		return models.Attachment{}, err
	}
	return s.write(ctx, f)
}

func (s *Store) write(ctx context.Context, f File) (models.Attachment, error) {
	name := s.storageName(f.OriginalName)
	mimeType := normalizeMimeType(f.MimeType)

	// The declared size is only a claim; the limit is enforced on the bytes actually read.
	body := &limitReader{r: f.Content, max: s.maxSize}
	path, err := s.backend.Put(ctx, name, body, f.Size, mimeType)
	if body.exceeded {
		if err == nil {
			s.deleteQuietly(ctx, path)
		}
		return models.Attachment{}, s.tooLarge(f.OriginalName)
	}
	if err != nil {
		return models.Attachment{}, fmt.Errorf("%w: %s: %v", ErrStorageWrite, f.OriginalName, err)
	}

	return models.Attachment{
		Filename:     name,
		OriginalName: f.OriginalName,
		MimeType:     mimeType,
		Size:         body.n,
		UploadDate:   s.now().UTC(),
		Path:         path,
	}, nil
}

// SaveAll stores a batch all-or-nothing: every file is validated before the
// first write, and a write failure removes the files this call already wrote.
func (s *Store) SaveAll(ctx context.Context, files []File) ([]models.Attachment, error) {
	for _, f := range files {
		if err := s.Validate(f); err != nil {
			return nil, err
		}
	}

	saved := make([]models.Attachment, 0, len(files))
	for _, f := range files {
		att, err := s.write(ctx, f)
		if err != nil {
			if report := s.deleteFiles(ctx, saved); report.Err() != nil {
				s.log.For(ctx).Warn("rollback of stored batch incomplete", zap.Error(report.Err()))
			}
			return nil, err
		}
		saved = append(saved, att)
	}
	return saved, nil
}

// Download is an open attachment stream plus the fields needed for response headers.
type Download struct {
	Content      io.ReadCloser
	Filename     string
	OriginalName string
	MimeType     string
	Size         int64
}

// Retrieve opens the named attachment of task. The caller closes Content.
func (s *Store) Retrieve(ctx context.Context, task *models.Task, filename string) (*Download, error) {
	i := task.Attachments.Index(filename)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrAttachmentNotFound, filename)
	}
	att := task.Attachments[i]

	ok, err := s.backend.Exists(ctx, att.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileMissing, filename)
	}
	rc, err := s.backend.Open(ctx, att.Path)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFileMissing, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}

	return &Download{
		Content:      rc,
		Filename:     att.Filename,
		OriginalName: att.OriginalName,
		MimeType:     att.MimeType,
		Size:         att.Size,
	}, nil
}

// Remove deletes the named attachment's bytes and drops it from task's list.
// The entry is dropped even when the backend delete fails; that failure is in
// the returned report.
func (s *Store) Remove(ctx context.Context, task *models.Task, filename string) (*CleanupReport, error) {
	i := task.Attachments.Index(filename)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrAttachmentNotFound, filename)
	}
	report := s.deleteFiles(ctx, task.Attachments[i:i+1])
	task.Attachments = task.Attachments.Without(filename)
	return report, nil
}

// RemoveAll deletes the bytes of every attachment of task and empties its list.
func (s *Store) RemoveAll(ctx context.Context, task *models.Task) *CleanupReport {
	report := s.deleteFiles(ctx, task.Attachments)
	task.Attachments = models.Attachments{}
	return report
}

// Delta is the net change ReplaceBatch asks the caller to apply to a task.
type Delta struct {
	Added   []models.Attachment
	Removed []string
	Cleanup *CleanupReport
}

// Apply returns list with the removals pulled and the additions appended.
func (d *Delta) Apply(list models.Attachments) models.Attachments {
	out := list.Without(d.Removed...)
	return append(out, d.Added...)
}

func (d *Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// ReplaceBatch stores newFiles and deletes the bytes of removeFilenames,
// returning the delta without touching task. New files are stored first; if
// that fails no removal is applied and nothing should be committed.
func (s *Store) ReplaceBatch(ctx context.Context, task *models.Task, newFiles []File, removeFilenames []string) (*Delta, error) {
	var (
		removed []string
		doomed  []models.Attachment
		seen    = make(map[string]struct{}, len(removeFilenames))
	)
	for _, name := range removeFilenames {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		i := task.Attachments.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrAttachmentNotFound, name)
		}
		removed = append(removed, name)
		doomed = append(doomed, task.Attachments[i])
	}

	added, err := s.SaveAll(ctx, newFiles)
	if err != nil {
		return nil, err
	}

	return &Delta{
		Added:   added,
		Removed: removed,
		Cleanup: s.deleteFiles(ctx, doomed),
	}, nil
}

// Discard removes files that were stored but never committed to a task.
func (s *Store) Discard(ctx context.Context, atts []models.Attachment) *CleanupReport {
	return s.deleteFiles(ctx, atts)
}

func (s *Store) deleteFiles(ctx context.Context, atts []models.Attachment) *CleanupReport {
	report := &CleanupReport{}
	for _, a := range atts {
		if err := s.backend.Delete(ctx, a.Path); err != nil {
			report.fail(a.Filename, err)
			continue
		}
		report.Deleted = append(report.Deleted, a.Filename)
	}
	return report
}

func (s *Store) deleteQuietly(ctx context.Context, path string) {
	if err := s.backend.Delete(ctx, path); err != nil {
		s.log.For(ctx).Warn("failed to delete oversized upload", zap.String("path", path), zap.Error(err))
	}
}

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// storageName is a uuid plus the original extension. Nothing else from the
// client-supplied name reaches the backend.
func (s *Store) storageName(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	return s.newToken() + ext
}

func normalizeMimeType(v string) string {
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// FormatSize renders whole mebibyte and kibibyte limits compactly, e.g. "10MB".
func FormatSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

type limitReader struct {
	r        io.Reader
	max      int64
	n        int64
	exceeded bool
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		l.exceeded = true
		return n, ErrFileTooLarge
	}
	return n, err
}
