package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const rateLimitErrorCode = "spam_risk_too_many_pending_share"

// Doer lets callers swap in the retrying client from pkg/httputil.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to TikTok's direct-post endpoints with a single bearer token.
// The token is read-only and safe to share across concurrent sessions.
type Client struct {
	accessToken  string
	initURL      string
	statusURL    string
	privacyLevel string
	http         Doer
}

type ClientOptions struct {
	AccessToken  string
	InitURL      string
	StatusURL    string
	PrivacyLevel string
	HTTPClient   Doer
}

// InitResult is the init response decoded once at the boundary: either a
// publish handle, or a recognized provider rate-limit signal.
type InitResult struct {
	PublishID   string
	UploadURL   string
	RateLimited bool
}

// StatusResult reports one status poll. Gone marks an HTTP 404, which the
// provider returns once processing has finished and the handle expired.
type StatusResult struct {
	Status string
	Gone   bool
}

func NewClient(opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		accessToken:  opts.AccessToken,
		initURL:      opts.InitURL,
		statusURL:    opts.StatusURL,
		privacyLevel: opts.PrivacyLevel,
		http:         httpClient,
	}
}

// InitUpload opens a direct-post session for a video of the given size. The
// whole file goes up as one chunk, so chunk size equals video size.
func (c *Client) InitUpload(ctx context.Context, caption string, size int64) (*InitResult, error) {
	payload := map[string]any{
		"post_info": map[string]any{
			"title":         caption,
			"privacy_level": c.privacyLevel,
		},
		"source_info": map[string]any{
			"source":            "FILE_UPLOAD",
			"video_size":        size,
			"chunk_size":        size,
			"total_chunk_count": 1,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal init request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.initURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create init request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("init request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read init response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &InitResult{RateLimited: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("init failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var initResp struct {
		Data struct {
			PublishID string `json:"publish_id"`
			UploadURL string `json:"upload_url"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &initResp); err != nil {
		return nil, fmt.Errorf("failed to parse init response: %w", err)
	}

	if initResp.Error.Code == rateLimitErrorCode {
		return &InitResult{RateLimited: true}, nil
	}

	if initResp.Data.PublishID == "" || initResp.Data.UploadURL == "" {
		return nil, fmt.Errorf("missing publish_id or upload_url in init response: %s", string(respBody))
	}

	return &InitResult{
		PublishID: initResp.Data.PublishID,
		UploadURL: normalizeUploadURL(initResp.Data.UploadURL),
	}, nil
}

// Transfer uploads the whole file in a single PUT with a full-range
// Content-Range header.
func (c *Client) Transfer(ctx context.Context, uploadURL string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}

	size := int64(len(data))
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", size-1, size))
	req.Header.Set("Accept", "application/json")
	req.ContentLength = size

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Status queries processing state for a publish handle.
func (c *Client) Status(ctx context.Context, publishID string) (*StatusResult, error) {
	statusURL := c.statusURL + "?" + url.Values{"publish_id": {publishID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return &StatusResult{Gone: true}, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status poll failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var statusResp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &statusResp); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}

	return &StatusResult{Status: statusResp.Data.Status}, nil
}

func normalizeUploadURL(uploadURL string) string {
	if strings.HasPrefix(uploadURL, "http") {
		return uploadURL
	}
	return "https://" + uploadURL
}
