package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/melody-ding/go-vidsr/internal/types"
)

// Frame geometry headers of the enhance endpoint.
const (
	HeaderFrameWidth  = "X-Frame-Width"
	HeaderFrameHeight = "X-Frame-Height"
)

// Upsampler is the model server as seen by the driver.
type Upsampler interface {
	Load(ctx context.Context, spec ModelSpec) error
	Enhance(ctx context.Context, frame types.Frame, outScale float64, faceEnhance bool) (types.Frame, error)
}

// Client talks to the model server over HTTP.
type Client struct {
	base        *url.URL
	http        *http.Client
	loadTimeout time.Duration
	log         zerolog.Logger
}

// ClientOption configures NewClient.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLoadTimeout bounds how long Load keeps retrying an unavailable server.
func WithLoadTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.loadTimeout = d }
}

// WithClientLogger sets the logger for retry notices.
func WithClientLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client for the server at baseURL. timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse model url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("model url must be http or https, got %q", baseURL)
	}
	c := &Client{
		base:        u,
		http:        &http.Client{Timeout: timeout},
		loadTimeout: time.Minute,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string) *url.URL {
	return c.base.JoinPath(path)
}

// Load asks the server to load spec, retrying while the server is unreachable
// or still starting up.
func (c *Client) Load(ctx context.Context, spec ModelSpec) error {
	body, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encode model spec: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.load(ctx, body)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.loadTimeout),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.Warn().Err(err).Dur("retry_in", wait).Msg("model server not ready")
		}),
	)
	if err != nil {
		return fmt.Errorf("load model %s: %w", spec.Path, err)
	}
	return nil
}

func (c *Client) load(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/v1/models/load").String(), bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("status %d", resp.StatusCode)
	default:
		return backoff.Permanent(statusError(resp))
	}
}

// Enhance sends one rgb24 frame and returns the enhanced frame with the
// same index.
func (c *Client) Enhance(ctx context.Context, frame types.Frame, outScale float64, faceEnhance bool) (types.Frame, error) {
	u := c.endpoint("/v1/enhance")
	q := u.Query()
	q.Set("outscale", strconv.FormatFloat(outScale, 'f', -1, 64))
	q.Set("face_enhance", strconv.FormatBool(faceEnhance))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(frame.Data))
	if err != nil {
		return types.Frame{}, fmt.Errorf("%w: %v", ErrModel, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(HeaderFrameWidth, strconv.Itoa(frame.Width))
	req.Header.Set(HeaderFrameHeight, strconv.Itoa(frame.Height))

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return types.Frame{}, ctx.Err()
		}
		return types.Frame{}, fmt.Errorf("%w: %v", ErrModel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Frame{}, statusError(resp)
	}

	w, werr := strconv.Atoi(resp.Header.Get(HeaderFrameWidth))
	h, herr := strconv.Atoi(resp.Header.Get(HeaderFrameHeight))
	if werr != nil || herr != nil || w <= 0 || h <= 0 {
		return types.Frame{}, fmt.Errorf("%w: response without frame geometry", ErrModel)
	}
	data := make([]byte, types.FrameSize(w, h))
	if _, err := io.ReadFull(resp.Body, data); err != nil {
		return types.Frame{}, fmt.Errorf("%w: read %dx%d frame: %v", ErrModel, w, h, err)
	}
	return types.Frame{Index: frame.Index, Width: w, Height: h, Data: data}, nil
}

// statusError maps a failed response to the package sentinels.
func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(msg))
	switch {
	case resp.StatusCode == http.StatusInsufficientStorage,
		strings.Contains(strings.ToLower(text), "out of memory"):
		return fmt.Errorf("%w: status %d: %s", ErrOutOfMemory, resp.StatusCode, text)
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnsupportedMediaType,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: status %d: %s", ErrFrameRejected, resp.StatusCode, text)
	}
	return fmt.Errorf("%w: status %d: %s", ErrModel, resp.StatusCode, text)
}

var _ Upsampler = (*Client)(nil)

