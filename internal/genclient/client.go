// Package genclient talks to the external content-generation service. It
// orchestrates the prepare / process-batch / finalize job protocol and
// assembles the summary and full content strings from the final result.
package genclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"llmspub/internal/pub"
)

// DefaultBatchSize is the number of content units advanced per round trip.
const DefaultBatchSize = 5

// DefaultTimeout bounds a single HTTP round trip. Individual batches are
// small; the overall job length is governed by the batch loop, not this.
const DefaultTimeout = 120 * time.Second

// Client drives generation jobs against the remote service. It holds no
// job state between calls.
type Client struct {
	baseURL    string
	apiKey     string
	batchSize  int
	httpClient *http.Client
	logger     pub.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBatchSize overrides the per-round-trip batch size.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// New creates a generation client for the service at baseURL.
func New(baseURL, apiKey string, logger pub.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		batchSize:  DefaultBatchSize,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type prepareRequest struct {
	WebsiteURL string `json:"website_url"`
	OutputType string `json:"output_type"`
}

type prepareResponse struct {
	JobID string `json:"job_id"`
	Total int    `json:"total"`
}

type batchRequest struct {
	JobID string `json:"job_id"`
	Start int    `json:"start"`
	Size  int    `json:"size"`
}

type batchResponse struct {
	Processed int `json:"processed"`
}

type finalizeResponse struct {
	LLMSText     string `json:"llms_text"`
	LLMSFullText string `json:"llms_full_text"`
	IsZipMode    bool   `json:"is_zip_mode"`
	ZipData      string `json:"zip_data"` // base64 when zip mode
}

// Run executes a full generation job: prepare, advance in batches until
// every unit is processed, then finalize and assemble the content strings.
// Any non-success response at any step aborts the job as a single failure.
func (c *Client) Run(ctx context.Context, websiteURL string, outputType pub.OutputType) (*pub.GenerationResult, error) {
	var prep prepareResponse
	err := c.post(ctx, "/prepare_generation", prepareRequest{
		WebsiteURL: websiteURL,
		OutputType: string(outputType),
	}, &prep)
	if err != nil {
		return nil, fmt.Errorf("preparing generation: %w", err)
	}
	if prep.JobID == "" {
		return nil, fmt.Errorf("%w: prepare returned no job id", pub.ErrUpstream)
	}

	c.logger.Debug("generation job prepared", "job_id", prep.JobID, "total", prep.Total)

	for start := 0; start < prep.Total; {
		var batch batchResponse
		err := c.post(ctx, "/process_batch", batchRequest{
			JobID: prep.JobID,
			Start: start,
			Size:  c.batchSize,
		}, &batch)
		if err != nil {
			return nil, fmt.Errorf("processing batch at %d: %w", start, err)
		}
		// A non-advancing response would loop forever; treat it as a broken
		// upstream.
		if batch.Processed <= start {
			return nil, fmt.Errorf("%w: batch did not advance (start=%d, processed=%d)",
				pub.ErrUpstream, start, batch.Processed)
		}
		start = batch.Processed
	}

	var fin finalizeResponse
	if err := c.get(ctx, "/finalize/"+prep.JobID, &fin); err != nil {
		return nil, fmt.Errorf("finalizing job %s: %w", prep.JobID, err)
	}

	result := &pub.GenerationResult{
		Summary: fin.LLMSText,
		Full:    fin.LLMSFullText,
	}
	if fin.IsZipMode {
		archive, err := base64.StdEncoding.DecodeString(fin.ZipData)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding archive payload: %v", pub.ErrUpstream, err)
		}
		result.Archive = archive
	}
	if result.Summary == "" && result.Full == "" {
		return nil, fmt.Errorf("%w: finalize returned no content", pub.ErrUpstream)
	}

	c.logger.Info("generation job complete",
		"job_id", prep.JobID,
		"summary_bytes", len(result.Summary),
		"full_bytes", len(result.Full),
		"zip_mode", fin.IsZipMode)
	return result, nil
}

type otpSendRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type otpVerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type otpVerifyResponse struct {
	Verified bool `json:"verified"`
}

// SendOTP asks the verification service to email a one-time code.
func (c *Client) SendOTP(ctx context.Context, name, email string) error {
	if err := c.post(ctx, "/send_otp", otpSendRequest{Name: name, Email: email}, &struct{}{}); err != nil {
		return fmt.Errorf("sending verification code: %w", err)
	}
	return nil
}

// VerifyOTP checks a one-time code against the verification service.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (bool, error) {
	var resp otpVerifyResponse
	if err := c.post(ctx, "/verify_otp", otpVerifyRequest{Email: email, OTP: otp}, &resp); err != nil {
		return false, fmt.Errorf("verifying code: %w", err)
	}
	return resp.Verified, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", pub.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", pub.ErrUpstream, req.URL.Path, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	// An empty 2xx body is fine for calls that carry no response fields.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decoding response from %s: %v", pub.ErrUpstream, req.URL.Path, err)
	}
	return nil
}

var _ pub.Generator = (*Client)(nil)
