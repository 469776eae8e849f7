package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// POST /api/v1/tasks/{id}/attachments
// AddAttachments godoc
// @Summary Attach files to a task
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Task ID"
// @Param files formData file true "Files to attach" style(form) explode(true)
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload "No files, file too large or unsupported type"
// @Failure 404 {object} utils.Payload
// @Failure 500 {object} utils.Payload "Storage write failed"
// @Router /api/v1/tasks/{id}/attachments [post]
func (h *Handler) AddAttachments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	form, err := h.parseMultipart(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer form.RemoveAll()

	if len(form.File["files"]) == 0 {
		h.fail(w, r, badRequest("no files provided"))
		return
	}
	files, closeFiles, err := openFiles(form.File["files"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer closeFiles()

	task, err := h.tasks.AddAttachments(r.Context(), id, files)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Files attached", task)
}

// GET /api/v1/tasks/{id}/attachments/{filename}
// DownloadAttachment godoc
// @Summary Download an attachment
// @Description Streams the stored bytes with the original file name. 410 means the metadata exists but storage lost the file.
// @Tags Attachments
// @Produce octet-stream
// @Param id path string true "Task ID"
// @Param filename path string true "Stored filename"
// @Success 200 {file} file
// @Failure 404 {object} utils.Payload "Task or attachment not found"
// @Failure 410 {object} utils.Payload "File missing from storage"
// @Router /api/v1/tasks/{id}/attachments/{filename} [get]
func (h *Handler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.tasks.Download(r.Context(), id, r.PathValue("filename"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer d.Content.Close()

	w.Header().Set("Content-Type", d.MimeType)
	w.Header().Set("Content-Disposition", contentDisposition(d.OriginalName))
	w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, d.Content); err != nil {
		h.log.For(r.Context()).Warn("attachment download interrupted",
			zap.String("task_id", id.String()),
			zap.String("filename", d.Filename),
			zap.Error(err))
	}
}

// DELETE /api/v1/tasks/{id}/attachments/{filename}
// DeleteAttachment godoc
// @Summary Remove one attachment from a task
// @Description Returns the remaining attachments.
// @Tags Attachments
// @Produce json
// @Param id path string true "Task ID"
// @Param filename path string true "Stored filename"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload "Task or attachment not found"
// @Failure 409 {object} utils.Payload "Concurrent update"
// @Router /api/v1/tasks/{id}/attachments/{filename} [delete]
func (h *Handler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	task, err := h.tasks.RemoveAttachment(r.Context(), id, r.PathValue("filename"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Attachment removed", task.Attachments)
}

// contentDisposition builds an attachment header with an ASCII fallback name
// and the exact name as an RFC 5987 filename*.
func contentDisposition(name string) string {
	var fallback strings.Builder
	for _, c := range name {
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			fallback.WriteByte('_')
			continue
		}
		fallback.WriteRune(c)
	}
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback.String(), encodeExtValue(name))
}

func encodeExtValue(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
