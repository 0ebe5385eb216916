// Package upload stores poster images on the local filesystem. Files are
// written under a single uploads directory with randomized names and are
// served back as static content; nothing here resizes or re-encodes the
// image, the only checks are the sniffed MIME type and a size cap.
package upload

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/iliyamo/movie-catalog/internal/utils"
)

// Validation errors surfaced to handlers as field-level 400 responses.
var (
	ErrNotImage = errors.New("poster must be an image")
	ErrTooLarge = errors.New("poster exceeds the size limit")
)

// Store writes and removes poster files inside a fixed directory.
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates the uploads directory when missing and returns a Store
// enforcing the given size cap on every saved file.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the directory posters are stored in, for static file serving.
func (s *Store) Dir() string { return s.dir }

// extByMIME maps the sniffed content types we accept to file extensions.
// Anything image/* that is not listed keeps the original extension.
var extByMIME = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/bmp":     ".bmp",
	"image/svg+xml": ".svg",
}

// SavePoster validates and stores one uploaded poster, returning the
// generated filename to persist as the movie's poster reference. The MIME
// type is sniffed from the file contents, not taken from the request, and
// the size cap is enforced while copying so a lying Content-Length cannot
// bypass it.
func (s *Store) SavePoster(fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.maxBytes {
		return "", ErrTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	// Sniff the first 512 bytes; that is all DetectContentType looks at.
	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	head = head[:n]
	mime := http.DetectContentType(head)
	if !strings.HasPrefix(mime, "image/") {
		return "", ErrNotImage
	}

	ext, ok := extByMIME[mime]
	if !ok {
		ext = strings.ToLower(filepath.Ext(fh.Filename))
	}
	base, err := utils.RandomHex(12)
	if err != nil {
		return "", err
	}
	name := base + ext

	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := dst.Write(head); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	// Copy at most maxBytes-len(head)+1 more bytes; anything left over in
	// the source means the file was larger than allowed.
	remain := s.maxBytes - int64(len(head))
	written, err := io.Copy(dst, io.LimitReader(src, remain+1))
	if err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	if written > remain {
		os.Remove(dst.Name())
		return "", ErrTooLarge
	}
	return name, nil
}

// Remove deletes a stored poster by the name previously returned from
// SavePoster. The name is reduced to its base so a crafted reference cannot
// escape the uploads directory. A missing file is not an error.
func (s *Store) Remove(name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
