// Package upload stores user supplied images on local disk.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/tour-booking/internal/apperror"
)

// MsgNotImage rejects uploads whose content is not an image.
const MsgNotImage = "Not an image! Please upload only images."

// DefaultMaxBytes caps a single upload.
const DefaultMaxBytes = 5 << 20

var extensions = map[string]string{
	"image/jpeg": ".jpeg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// ImageStore writes images below Dir, one sub-directory per kind.
type ImageStore struct {
	Dir      string
	MaxBytes int64
}

func NewImageStore(dir string) *ImageStore {
	return &ImageStore{Dir: dir, MaxBytes: DefaultMaxBytes}
}

// Save sniffs the content type from the first bytes of r, rejects anything
// that is not an image and writes it to Dir/kind under a fresh name
// starting with prefix.  The returned file name is relative to Dir/kind.
func (s *ImageStore) Save(kind, prefix string, r io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	ctype := http.DetectContentType(head)
	if !strings.HasPrefix(ctype, "image/") {
		return "", apperror.New(http.StatusBadRequest, MsgNotImage)
	}
	ext, ok := extensions[ctype]
	if !ok {
		ext = "." + strings.TrimPrefix(ctype, "image/")
	}

	dir := filepath.Join(s.Dir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext)
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	src := io.MultiReader(bytes.NewReader(head), r)
	if s.MaxBytes > 0 {
		src = io.LimitReader(src, s.MaxBytes+1)
	}
	written, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.MaxBytes > 0 && written > s.MaxBytes {
		err = apperror.Newf(http.StatusRequestEntityTooLarge, "Image must be smaller than %d MB.", s.MaxBytes>>20)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return name, nil
}
