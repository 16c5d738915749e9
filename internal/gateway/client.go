package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/kingrea/semester-planner/internal/idgen"
)

const (
	// DefaultTimeout bounds a single request; document extraction is slow.
	DefaultTimeout = 120 * time.Second
	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes int64 = 4 << 20
	uploadFieldName        = "file"
)

// Client implements Gateway over the planner service's HTTP API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
	requestID  idgen.Generator
}

var _ Gateway = (*Client)(nil)

// Option customizes Client construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Named("gateway")
		}
	}
}

// WithRequestIDs overrides the X-Request-ID generator.
func WithRequestIDs(gen idgen.Generator) Option {
	return func(c *Client) {
		if gen != nil {
			c.requestID = gen
		}
	}
}

// NewClient builds a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, fmt.Errorf("gateway: base url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("gateway: base url must be http or https, got %q", raw)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
		requestID:  idgen.Prefixed("req_", idgen.UUIDv7()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// StartSession uploads file as multipart form data to POST /upload.
func (c *Client) StartSession(ctx context.Context, file File) (StartResult, error) {
	const op = "upload"
	body, contentType, err := encodeUpload(file)
	if err != nil {
		return StartResult{}, transferError(op, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "upload", bytes.NewReader(body))
	if err != nil {
		return StartResult{}, transferError(op, err)
	}
	req.Header.Set("Content-Type", contentType)

	var parsed uploadResponse
	if err := c.do(req, op, ErrExtraction, &parsed); err != nil {
		return StartResult{}, err
	}
	if strings.TrimSpace(parsed.SessionID) == "" {
		return StartResult{}, transferError(op, errors.New("response missing session_id"))
	}
	result := parsed.result()
	c.logger.Info("session started",
		zap.String("session_id", result.SessionID),
		zap.String("file", file.Name),
		zap.Int("clarifications", len(result.Clarifications)))
	return result, nil
}

// FinalizeSession posts the answers to POST /refine.
func (c *Client) FinalizeSession(ctx context.Context, sessionID string, answers map[string]string) (FinalizeResult, error) {
	const op = "refine"
	if answers == nil {
		answers = map[string]string{}
	}
	payload, err := json.Marshal(refineRequest{SessionID: sessionID, Answers: answers})
	if err != nil {
		return FinalizeResult{}, transferError(op, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "refine", bytes.NewReader(payload))
	if err != nil {
		return FinalizeResult{}, transferError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var parsed refineResponse
	if err := c.do(req, op, ErrRefinement, &parsed); err != nil {
		return FinalizeResult{}, err
	}
	if parsed.Version == "" {
		return FinalizeResult{}, transferError(op, errors.New("response missing version"))
	}
	c.logger.Info("session finalized",
		zap.String("session_id", sessionID),
		zap.String("version", string(parsed.Version)),
		zap.Int("answers", len(answers)))
	return FinalizeResult{Version: string(parsed.Version)}, nil
}

// DownloadURL returns GET /download/{version} as an absolute URL, or ""
// when version cannot name an artifact.
func (c *Client) DownloadURL(version string) string {
	if !validVersion(version) {
		return ""
	}
	return c.endpoint("download", url.PathEscape(version))
}

// validVersion rejects empty versions and dot segments, which JoinPath
// would clean away from the download path.
func validVersion(version string) bool {
	switch strings.TrimSpace(version) {
	case "", ".", "..":
		return false
	}
	return true
}

func (c *Client) endpoint(elem ...string) string {
	return c.baseURL.JoinPath(elem...).String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, c.requestID())
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. Responses with status
// >= 400 become errors of the given kind carrying the service detail.
func (c *Client) do(req *http.Request, op string, rejectKind error, out any) error {
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("op", op),
			zap.String("request_id", req.Header.Get(RequestIDHeader)),
			zap.Error(err))
		return transferError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transferError(op, fmt.Errorf("read response: %w", err))
	}
	c.logger.Debug("response",
		zap.String("op", op),
		zap.String("request_id", req.Header.Get(RequestIDHeader)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode >= http.StatusBadRequest {
		gerr := &Error{Op: op, Kind: rejectKind, Status: resp.StatusCode, Detail: decodeDetail(body)}
		c.logger.Warn("service rejected request",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", gerr.Detail))
		return gerr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return transferError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// decodeDetail extracts the service message from an error body. FastAPI
// style {"detail": "..."} is preferred; a short plain-text body is used as-is.
func decodeDetail(body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		var detail string
		if json.Unmarshal(parsed.Detail, &detail) == nil {
			return strings.TrimSpace(detail)
		}
		return ""
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

func encodeUpload(file File) ([]byte, string, error) {
	name := filepath.Base(strings.TrimSpace(file.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "document"
	}
	contentType := strings.TrimSpace(file.ContentType)
	if contentType == "" {
		contentType = mimetype.Detect(file.Data).String()
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadFieldName, name))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
