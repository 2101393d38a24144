package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Da-Coder-Jr/Vidiment/internal/request"
)

// Static errors for generator client operations.
var (
	// ErrBaseURLRequired is returned when the service base URL is not provided.
	ErrBaseURLRequired = errors.New("generator: base URL is required")
	// ErrUnknownRequest is returned for request types the client cannot route.
	ErrUnknownRequest = errors.New("generator: unknown request type")
	// ErrMissingVideoPath is returned when a success response has no video_path.
	ErrMissingVideoPath = errors.New("generator: response missing video_path")
)

// Client defines the interface for submitting generation requests.
type Client interface {
	// Submit sends one request and waits for the service's answer.
	// Errors are *RejectedError or *TransportError.
	Submit(ctx context.Context, req request.GenerationRequest) (Result, error)
}

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithTimeout sets the overall timeout of one submission.
// Generation is slow, so the default is generous.
func WithTimeout(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient.Timeout = d
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) ClientOption {
	return func(hc *HTTPClient) {
		if l != nil {
			hc.logger = l
		}
	}
}

// NewClient creates a new generator HTTP client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrBaseURLRequired
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("generator: parse base URL: %w", err)
	}

	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit serializes req, posts it to its pipeline's endpoint and decodes the answer.
func (c *HTTPClient) Submit(ctx context.Context, req request.GenerationRequest) (Result, error) {
	path, field, prompt, err := route(req)
	if err != nil {
		return Result{}, &TransportError{Op: "route request", Err: err}
	}

	body, contentType, err := encodeMultipart(field, prompt, req.BackgroundSource())
	if err != nil {
		return Result{}, &TransportError{Op: "encode request", Err: err}
	}

	requestID := uuid.New().String()
	logger := c.logger.With(
		slog.String("pipeline", string(req.Pipeline())),
		slog.String("request_id", requestID),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return Result{}, &TransportError{Op: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	logger.Debug("submitting generation request",
		slog.String("background", string(req.BackgroundSource().Kind())),
		slog.Bool("narration", req.Narration()),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Warn("generation request failed", slog.String("error", err.Error()))
		return Result{}, &TransportError{Op: "send request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &TransportError{Op: "read response", Err: err}
	}

	logger.Info("generation response",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, rejection(resp.StatusCode, respBody)
	}

	return decodeResult(req.Pipeline(), respBody)
}

// route picks the endpoint, multipart field and JSON payload for req.
func route(req request.GenerationRequest) (path, field string, prompt any, err error) {
	bg := req.BackgroundSource()
	switch r := req.(type) {
	case request.StoryRequest:
		return storyPath, storyField, storyPrompt{
			Prompt:            r.Prompt,
			GenerateNarration: r.GenerateNarration,
			YouTubeURL:        bg.URL(),
		}, nil
	case request.CommunityRequest:
		return communityPath, communityField, communityPrompt{
			Subreddit:         r.Community,
			GenerateNarration: r.GenerateNarration,
			YouTubeURL:        bg.URL(),
		}, nil
	default:
		return "", "", nil, fmt.Errorf("%w: %T", ErrUnknownRequest, req)
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeMultipart writes the JSON part and, for uploaded images, the file part.
func encodeMultipart(field string, prompt any, bg request.BackgroundSource) (*bytes.Buffer, string, error) {
	payload, err := json.Marshal(prompt)
	if err != nil {
		return nil, "", fmt.Errorf("marshal %s: %w", field, err)
	}

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	jsonHeader := textproto.MIMEHeader{}
	jsonHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, field))
	jsonHeader.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(jsonHeader)
	if err != nil {
		return nil, "", fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", fmt.Errorf("write %s part: %w", field, err)
	}

	if bg.Kind() == request.BackgroundUploadedImage {
		img := bg.Upload()
		mimeType := img.MIMEType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		fileHeader := textproto.MIMEHeader{}
		fileHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			backgroundField, quoteEscaper.Replace(img.Filename)))
		fileHeader.Set("Content-Type", mimeType)
		filePart, err := mw.CreatePart(fileHeader)
		if err != nil {
			return nil, "", fmt.Errorf("create %s part: %w", backgroundField, err)
		}
		if _, err := filePart.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("write %s part: %w", backgroundField, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf, mw.FormDataContentType(), nil
}

// rejection builds a RejectedError, preferring the server's detail string.
func rejection(status int, body []byte) *RejectedError {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		if detail, ok := er.Detail.(string); ok && detail != "" {
			return &RejectedError{StatusCode: status, Detail: detail}
		}
	}
	return &RejectedError{
		StatusCode: status,
		Detail:     fmt.Sprintf("HTTP error! status: %d", status),
	}
}

// decodeResult maps a success body to a Result for the given pipeline.
func decodeResult(p request.Pipeline, body []byte) (Result, error) {
	switch p {
	case request.PipelineStory:
		var sr storyResponse
		if err := json.Unmarshal(body, &sr); err != nil {
			return Result{}, &TransportError{Op: "decode response", Err: err}
		}
		if sr.VideoPath == "" {
			return Result{}, &TransportError{Op: "decode response", Err: ErrMissingVideoPath}
		}
		return Result{Pipeline: p, ArtifactPath: sr.VideoPath, Text: sr.Story}, nil
	case request.PipelineCommunity:
		var cr communityResponse
		if err := json.Unmarshal(body, &cr); err != nil {
			return Result{}, &TransportError{Op: "decode response", Err: err}
		}
		if cr.VideoPath == "" {
			return Result{}, &TransportError{Op: "decode response", Err: ErrMissingVideoPath}
		}
		text := cr.VideoScript
		if text == "" {
			text = cr.OriginalTitle
		}
		return Result{Pipeline: p, ArtifactPath: cr.VideoPath, Text: text, Title: cr.OriginalTitle}, nil
	default:
		return Result{}, &TransportError{Op: "decode response", Err: fmt.Errorf("%w: pipeline %q", ErrUnknownRequest, p)}
	}
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
