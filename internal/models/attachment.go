package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Attachment is the metadata of a file stored for a task. It lives inside the
// task row; the bytes live on the storage backend under Path.
type Attachment struct {
	Filename     string    `json:"filename"`     // generated storage name
	OriginalName string    `json:"originalName"` // display only, never used as a path
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"` // bytes
	UploadDate   time.Time `json:"uploadDate"`
	Path         string    `json:"-"` // backend location, owned by the attachment store
}

// Attachments is the ordered attachment list of a task, persisted as a JSON
// column. Path is kept in the column even though it is hidden from API output.
type Attachments []Attachment

type storedAttachment struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	UploadDate   time.Time `json:"upload_date"`
	Path         string    `json:"path"`
}

func (a Attachments) Value() (driver.Value, error) {
	rows := make([]storedAttachment, len(a))
	for i, att := range a {
		rows[i] = storedAttachment(att)
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Attachments) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attachments{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("attachments: unsupported column type %T", src)
	}
	if len(raw) == 0 {
		*a = Attachments{}
		return nil
	}
	var rows []storedAttachment
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("attachments: %w", err)
	}
	out := make(Attachments, len(rows))
	for i, r := range rows {
		out[i] = Attachment(r)
	}
	*a = out
	return nil
}

// Index returns the position of the attachment stored as filename, or -1.
func (a Attachments) Index(filename string) int {
	for i, att := range a {
		if att.Filename == filename {
			return i
		}
	}
	return -1
}

// Without returns a copy of the list minus every entry whose filename is in names.
func (a Attachments) Without(names ...string) Attachments {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	out := make(Attachments, 0, len(a))
	for _, att := range a {
		if _, ok := drop[att.Filename]; !ok {
			out = append(out, att)
		}
	}
	return out
}
