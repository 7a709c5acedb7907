package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/spance/dermascan-go/constants"
	"github.com/spance/dermascan-go/pipeline/definitions"
)

// Client talks to the diagnosis service: it uploads a face photo and fetches
// the processed image the service returns.
type Client struct {
	config *definitions.ClientConfig
	http   *http.Client
}

func NewClient(cfg *definitions.ClientConfig) *Client {
	cfg = cfg.WithDefaults()

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          5,
		IdleConnTimeout:       5 * time.Minute,
	}

	return &Client{
		config: cfg,
		http: &http.Client{
			Transport: transport,
			// bounds writing the body plus reading the whole response
			Timeout: cfg.WriteTimeout + cfg.ReadTimeout,
		},
	}
}

func (c *Client) Config() *definitions.ClientConfig {
	return c.config
}

type uploadResponse struct {
	Message string `json:"message"`
	Data    *struct {
		ProcessedImage string `json:"processed_image"`
	} `json:"data"`
}

// Upload runs both legs: submit the photo, then fetch and decode the result.
func (c *Client) Upload(ctx context.Context, env definitions.UploadEnvelope) (*definitions.Bitmap, error) {
	result, err := c.Submit(ctx, env)
	if err != nil {
		return nil, err
	}
	return c.Fetch(ctx, result.ProcessedImageURL)
}

// Submit posts the image as multipart form data and decodes the envelope.
func (c *Client) Submit(ctx context.Context, env definitions.UploadEnvelope) (*definitions.DiagnosisResult, error) {
	const op = "client.submit"
	startTime := time.Now()

	body, contentType, err := buildMultipart(env)
	if err != nil {
		return nil, definitions.NewSourceError(op, "cannot build upload body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.UploadURL(), body)
	if err != nil {
		return nil, definitions.NewServerError(op, "invalid upload url", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	log.Debug().Str("url", req.URL.String()).Int("bytes", len(env.Image)).Str("user_id", env.CallerID).Msg("uploading image")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	raw, err := c.readBody(op, resp.Body)
	if err != nil {
		return nil, err
	}

	result := &definitions.DiagnosisResult{Status: definitions.DiagnosisError, HTTPStatus: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Int("status", resp.StatusCode).Str("body", truncate(raw, 200)).Msg("diagnosis service rejected upload")
		return nil, definitions.NewServerError(op, fmt.Sprintf("server error %d", resp.StatusCode), nil)
	}
	if len(raw) == 0 {
		return nil, definitions.NewServerError(op, "empty response body", nil)
	}

	var envelope uploadResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, definitions.NewServerError(op, "malformed response envelope", err)
	}
	result.Message = envelope.Message
	if envelope.Data == nil || envelope.Data.ProcessedImage == "" {
		return nil, definitions.NewServerError(op, "response has no data.processed_image", nil)
	}

	imageURL, err := c.resolveURL(envelope.Data.ProcessedImage)
	if err != nil {
		return nil, definitions.NewServerError(op, "invalid processed image url", err)
	}
	result.Status = definitions.DiagnosisSuccess
	result.ProcessedImageURL = imageURL

	log.Debug().Str("processed_image", imageURL).Dur("elapsed", time.Since(startTime)).Msg("upload accepted")
	return result, nil
}

// Fetch downloads and decodes the processed image at rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*definitions.Bitmap, error) {
	const op = "client.fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, definitions.NewServerError(op, "invalid processed image url", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, definitions.NewServerError(op, fmt.Sprintf("server error %d fetching processed image", resp.StatusCode), nil)
	}

	raw, err := c.readBody(op, resp.Body)
	if err != nil {
		return nil, err
	}

	bitmap, err := DecodeBitmap(raw, rawURL)
	if err != nil {
		return nil, definitions.NewDecodeError(op, err)
	}
	log.Debug().Str("url", rawURL).Str("format", bitmap.Format).Int("width", bitmap.Width).Int("height", bitmap.Height).Msg("processed image decoded")
	return bitmap, nil
}

// readBody reads at most MaxResponseBytes; a longer body is a server error.
func (c *Client) readBody(op string, body io.Reader) ([]byte, error) {
	limit := c.config.MaxResponseBytes
	raw, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, classify(op, err)
	}
	if int64(len(raw)) > limit {
		return nil, definitions.NewServerError(op, fmt.Sprintf("response larger than %d bytes", limit), nil)
	}
	return raw, nil
}

// resolveURL makes relative image references absolute against the base URL.
func (c *Client) resolveURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		return u.String(), nil
	}
	base, err := url.Parse(c.config.BaseURL + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func buildMultipart(env definitions.UploadEnvelope) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, constants.FormFieldFile, constants.UploadFileName))
	header.Set("Content-Type", constants.UploadMimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(env.Image); err != nil {
		return nil, "", err
	}
	if err := w.WriteField(constants.FormFieldUserID, env.CallerID); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// classify maps transport errors onto the failure taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return definitions.NewTimeout(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return definitions.NewTimeout(op, err)
	}
	return definitions.NewNetworkError(op, err)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
