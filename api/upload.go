package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/nkomarek/atelier/auth"
)

const (
	// maxUploadSize is the file size ceiling, 5 MiB.
	maxUploadSize = 5 << 20
	// multipartOverhead covers boundaries and the non-file form fields.
	multipartOverhead = 64 << 10
)

// allowedUploadPrefixes is the destination allow-list for uploads.
var allowedUploadPrefixes = []string{"projects/", "products/", "site/"}

// HandleUpload handles POST /upload: multipart form with fields file, path,
// and sessionToken. The session gate applies before the file is inspected;
// content type comes from the file's leading bytes, never from the client.
func (a *API) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart request")
		return
	}

	if err := a.auth.Authorize(r.FormValue("sessionToken")); err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			a.audit.logFailure(AuditSessionRejected, r, "upload without valid session")
			writeSessionExpired(w)
			return
		}
		a.mapError(w, err)
		return
	}

	destPath := r.FormValue("path")
	if destPath == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if !validUploadPath(destPath) {
		a.audit.logFailure(AuditUploadRejected, r, "path outside allowed prefixes",
			slog.String("path", destPath))
		writeError(w, http.StatusBadRequest, "destination path not allowed")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		a.mapError(w, err)
		return
	}
	if len(data) > maxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds 5 MiB limit")
		return
	}

	contentType := detectImageType(data)
	if contentType == "" {
		a.audit.logFailure(AuditUploadRejected, r, "no known image signature")
		writeError(w, http.StatusUnsupportedMediaType, "file is not a supported image format")
		return
	}

	url, err := a.blobs.Put(destPath, contentType, data)
	if err != nil {
		a.mapError(w, err)
		return
	}
	a.audit.log(AuditImageUploaded, r,
		slog.String("path", destPath),
		slog.String("content_type", contentType))
	writeJSON(w, http.StatusOK, UploadResponse{URL: url, ContentType: contentType})
}

// validUploadPath requires a clean, relative path under one of the allowed
// prefixes, with no traversal sequences.
func validUploadPath(p string) bool {
	if strings.Contains(p, "..") || strings.Contains(p, "\\") || strings.HasPrefix(p, "/") {
		return false
	}
	if path.Clean(p) != p {
		return false
	}
	for _, prefix := range allowedUploadPrefixes {
		if strings.HasPrefix(p, prefix) && len(p) > len(prefix) {
			return true
		}
	}
	return false
}

// detectImageType sniffs the leading bytes for known image signatures.
// Returns the empty string when no signature matches; the client-declared
// type and the file extension are never consulted.
func detectImageType(data []byte) string {
	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case len(data) >= 6 && (bytes.Equal(data[:6], []byte("GIF87a")) || bytes.Equal(data[:6], []byte("GIF89a"))):
		return "image/gif"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	default:
		return ""
	}
}
