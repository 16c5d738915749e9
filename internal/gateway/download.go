package gateway

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Health mirrors the service's root status document.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Online reports whether the service declared itself online.
func (h Health) Online() bool {
	return strings.EqualFold(strings.TrimSpace(h.Status), "online")
}

// Health calls GET / on the service.
func (c *Client) Health(ctx context.Context) (Health, error) {
	const op = "health"
	req, err := c.newRequest(ctx, http.MethodGet, "", nil)
	if err != nil {
		return Health{}, transferError(op, err)
	}
	var h Health
	if err := c.do(req, op, ErrTransfer, &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// Download streams the artifact for version into w and returns the file
// name suggested by the service.
func (c *Client) Download(ctx context.Context, version string, w io.Writer) (string, error) {
	const op = "download"
	if strings.TrimSpace(version) == "" {
		return "", &Error{Op: op, Kind: ErrTransfer, Detail: "No plan version to download."}
	}
	if !validVersion(version) {
		return "", &Error{Op: op, Kind: ErrTransfer, Detail: fmt.Sprintf("Invalid plan version %q.", version)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(version), nil)
	if err != nil {
		return "", transferError(op, err)
	}
	req.Header.Set(RequestIDHeader, c.requestID())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transferError(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return "", &Error{Op: op, Kind: ErrTransfer, Status: resp.StatusCode, Detail: decodeDetail(body)}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return "", transferError(op, fmt.Errorf("copy body: %w", err))
	}
	name := attachmentName(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = DefaultArtifactName(version)
	}
	c.logger.Info("artifact downloaded", zap.String("version", version), zap.String("file", name), zap.Int64("bytes", n))
	return name, nil
}

// SaveTo downloads version into dir under the service-suggested name and
// returns the written path. A partial download never replaces an existing
// file.
func (c *Client) SaveTo(ctx context.Context, version, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("gateway: ensure %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("gateway: create temp file: %w", err)
	}
	name, err := c.Download(ctx, version, tmp)
	closeErr := tmp.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("gateway: close %s: %w", tmp.Name(), closeErr)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("gateway: save %s: %w", path, err)
	}
	return path, nil
}

// DefaultArtifactName is the name used when the service does not suggest one.
func DefaultArtifactName(version string) string {
	return fmt.Sprintf("semester_plan_%s.xlsx", version)
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	name := filepath.Base(strings.TrimSpace(params["filename"]))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
