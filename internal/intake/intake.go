// Package intake loads a document from disk and checks it against the
// accepted upload types before anything is sent to the planner service.
package intake

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kingrea/semester-planner/internal/gateway"
)

var (
	ErrEmpty       = errors.New("intake: file is empty")
	ErrTooLarge    = errors.New("intake: file is too large")
	ErrUnsupported = errors.New("intake: unsupported file type")
)

// DefaultAccept lists the document types the upload picker offers.
var DefaultAccept = []string{".pdf", ".docx", ".png", ".jpg", ".jpeg"}

// DefaultMaxBytes caps an upload at 25 MiB.
const DefaultMaxBytes int64 = 25 << 20

// Load reads path into a gateway.File with a detected content type.
// maxBytes <= 0 disables the size check.
func Load(path string, maxBytes int64) (gateway.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return gateway.File{}, fmt.Errorf("intake: path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return gateway.File{}, fmt.Errorf("intake: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return gateway.File{}, fmt.Errorf("intake: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return gateway.File{}, fmt.Errorf("intake: %s is a directory", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return gateway.File{}, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLarge, filepath.Base(path), info.Size(), maxBytes)
	}
	reader := io.Reader(f)
	if maxBytes > 0 {
		reader = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return gateway.File{}, fmt.Errorf("intake: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return gateway.File{}, fmt.Errorf("%w: %s", ErrEmpty, filepath.Base(path))
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return gateway.File{}, fmt.Errorf("%w: %s", ErrTooLarge, filepath.Base(path))
	}
	return gateway.File{
		Name:        filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

// Check rejects files whose extension and detected type both fall outside
// accept. An empty accept list allows everything.
func Check(file gateway.File, accept []string) error {
	if len(file.Data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmpty, file.Name)
	}
	if len(accept) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(file.Name))
	detected := mimetype.Detect(file.Data)
	for _, allowed := range accept {
		allowed = NormalizeExt(allowed)
		if allowed == "" {
			continue
		}
		if ext == allowed || detected.Extension() == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (%s); accepted: %s", ErrUnsupported, file.Name, detected.String(), strings.Join(accept, ", "))
}

// NormalizeExt lower-cases ext and ensures a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
