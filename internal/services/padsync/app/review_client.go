package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/shared/padtoken"
)

// ApplyResult reports what an applied snapshot did on the review side.
type ApplyResult struct {
	Changed bool `json:"changed"`
	Reset   int  `json:"reset"`
}

// ReviewClient posts pad snapshots to the review assessment ingest route,
// authenticating each request with a freshly minted service token.
type ReviewClient struct {
	baseURL string
	secret  string
	client  *http.Client
	clock   func() time.Time
}

// NewReviewClient builds a client for the review HTTP API. A nil
// httpClient falls back to a default with a request timeout.
func NewReviewClient(baseURL, secret string, httpClient *http.Client) *ReviewClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ReviewClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		client:  httpClient,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

type snapshotRequest struct {
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
	CapturedAt  string `json:"captured_at,omitempty"`
}

// Apply forwards one snapshot frame to the review service.
func (c *ReviewClient) Apply(ctx context.Context, frame Frame) (ApplyResult, error) {
	token, err := padtoken.Mint(c.secret, c.clock(), padtoken.DefaultTTL)
	if err != nil {
		return ApplyResult{}, err
	}

	body, err := json.Marshal(snapshotRequest{
		Content:     frame.Content,
		ContentHash: frame.Hash,
		CapturedAt:  frame.CapturedAt,
	})
	if err != nil {
		return ApplyResult{}, fmt.Errorf("encode snapshot request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/activities/%s/assessment", c.baseURL, frame.ActivityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ApplyResult{}, fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("post snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ApplyResult{}, decodeAPIError(resp)
	}
	var result ApplyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ApplyResult{}, fmt.Errorf("decode snapshot response: %w", err)
	}
	return result, nil
}

// decodeAPIError maps the review error envelope back onto a typed error so
// callers can tell expected rejections (suspended activity, unknown id)
// from transport failures.
func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code     string            `json:"code"`
			Message  string            `json:"message"`
			Metadata map[string]string `json:"metadata"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Code == "" {
		return fmt.Errorf("review API returned status %d", resp.StatusCode)
	}
	return apperrors.WithMetadata(apperrors.Code(envelope.Error.Code), envelope.Error.Message, envelope.Error.Metadata)
}
