package internal

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// multipartOverhead is slack for boundaries and text fields on top of the file limit.
const multipartOverhead int64 = 1 << 20

var allowedMimeTypes = map[string]string{
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"application/pdf":          ".pdf",
	"application/msword":       ".doc",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       ".xlsx",
}

// extraExtensions are client filename extensions accepted besides the canonical one.
var extraExtensions = map[string][]string{
	"image/jpeg": {".jpeg", ".jpe"},
}

// extensionMatches reports whether a client filename extension fits mediaType.
// A filename without an extension always matches.
func extensionMatches(mediaType, filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == allowedMimeTypes[mediaType] {
		return true
	}
	for _, extra := range extraExtensions[mediaType] {
		if ext == extra {
			return true
		}
	}
	return false
}

// uploadError is a client-side rejection of an upload.
type uploadError struct {
	msg string
}

func (e *uploadError) Error() string { return e.msg }

type storedFile struct {
	OK           bool   `json:"ok"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`

	diskPath string
}

// parseUploadForm bounds the body and parses it as multipart, answering 400 on failure.
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusBadRequest, s.sizeLimitMessage())
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, false
	}
	return r.MultipartForm, true
}

func (s *Server) sizeLimitMessage() string {
	return fmt.Sprintf("file exceeds the %s limit", humanize.IBytes(uint64(s.Config.MaxUploadBytes)))
}

// checkUpload applies the size ceiling and MIME allow-list, and rejects a
// filename extension that disagrees with the declared type.
func (s *Server) checkUpload(fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.Config.MaxUploadBytes {
		return "", &uploadError{s.sizeLimitMessage()}
	}
	mediaType, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil {
		return "", &uploadError{"missing or invalid content type"}
	}
	mediaType = strings.ToLower(mediaType)
	if _, ok := allowedMimeTypes[mediaType]; !ok {
		return "", &uploadError{fmt.Sprintf("file type %s is not allowed", mediaType)}
	}
	if !extensionMatches(mediaType, fh.Filename) {
		return "", &uploadError{fmt.Sprintf("file extension %s does not match %s", strings.ToLower(filepath.Ext(fh.Filename)), mediaType)}
	}
	return mediaType, nil
}

// storeUpload validates fh and copies it into the upload directory under a random name.
func (s *Server) storeUpload(fh *multipart.FileHeader) (*storedFile, error) {
	mediaType, err := s.checkUpload(fh)
	if err != nil {
		return nil, err
	}

	name := uuid.New().String() + allowedMimeTypes[mediaType]

	if err := os.MkdirAll(s.Config.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	diskPath := filepath.Join(s.Config.UploadDir, name)
	dst, err := os.OpenFile(diskPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	size, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(diskPath)
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	return &storedFile{
		OK:           true,
		Filename:     name,
		OriginalName: filepath.Base(fh.Filename),
		MimeType:     mediaType,
		Size:         size,
		Path:         "/uploads/" + name,
		diskPath:     diskPath,
	}, nil
}

// uploadFailed maps a storeUpload error to 400 or 500.
func (s *Server) uploadFailed(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *uploadError
	if errors.As(err, &rejected) {
		writeError(w, http.StatusBadRequest, rejected.msg)
		return
	}
	s.serverError(w, r, "failed to store upload", err)
}

// POST /uploads
func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseUploadForm(w, r)
	if !ok {
		return
	}
	defer form.RemoveAll()

	files := form.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}

	stored, err := s.storeUpload(files[0])
	if err != nil {
		s.uploadFailed(w, r, err)
		return
	}

	s.logger(r).WithFields(logrus.Fields{
		"filename":  stored.Filename,
		"mime_type": stored.MimeType,
		"size":      stored.Size,
	}).Info("upload stored")
	writeJSON(w, http.StatusOK, stored)
}

// GET /uploads/{name}
func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		notFound(w, r)
		return
	}

	diskPath := filepath.Join(s.Config.UploadDir, name)
	info, err := os.Stat(diskPath)
	if err != nil || info.IsDir() {
		notFound(w, r)
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, diskPath)
}
