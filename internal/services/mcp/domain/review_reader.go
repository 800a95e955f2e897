// Package domain defines the MCP tools exposed over the review service:
// read-only lookups of wallets, activities, timelines, and reviewer teams.
// Tools never mutate review state; agents that want to act go through the
// JSON API like everyone else.
package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
)

// WalletResult is the get_wallet tool output.
type WalletResult struct {
	OwnerID     int64  `json:"owner_id" jsonschema:"account that owns the wallet"`
	Balance     int64  `json:"balance" jsonschema:"current token balance"`
	LastUpdated string `json:"last_updated,omitempty" jsonschema:"RFC3339 timestamp of the last ledger posting"`
}

// ActivityResult is the get_activity tool output.
type ActivityResult struct {
	ID              string `json:"id" jsonschema:"activity identifier"`
	UUID            string `json:"uuid" jsonschema:"external UUID for cross-service reference"`
	PaperID         string `json:"paper_id" jsonschema:"paper under review"`
	CreatorID       int64  `json:"creator_id" jsonschema:"account that submitted the activity"`
	ActivityType    string `json:"activity_type" jsonschema:"workflow type (peer_review, journal_club)"`
	TemplateID      string `json:"template_id" jsonschema:"stage-graph template driving the workflow"`
	Funding         int64  `json:"funding" jsonschema:"tokens committed at submission"`
	EscrowRemaining int64  `json:"escrow_remaining" jsonschema:"tokens still held in escrow"`
	CurrentStage    string `json:"current_stage" jsonschema:"stage the activity is in"`
	CurrentRound    int    `json:"current_round" jsonschema:"review round counter"`
	StageEnteredAt  string `json:"stage_entered_at" jsonschema:"RFC3339 timestamp the stage was entered"`
	StageDeadline   string `json:"stage_deadline,omitempty" jsonschema:"RFC3339 stage deadline, if any"`
	Moderation      string `json:"moderation" jsonschema:"moderation state (clear, flagged, suspended)"`
	CreatedAt       string `json:"created_at" jsonschema:"RFC3339 creation timestamp"`
	UpdatedAt       string `json:"updated_at" jsonschema:"RFC3339 last update timestamp"`
}

// TeamMember is one reviewer row in the list_team tool output.
type TeamMember struct {
	UserID             int64  `json:"user_id" jsonschema:"reviewer account id"`
	Status             string `json:"status" jsonschema:"membership status (joined, locked_in, removed)"`
	JoinedAt           string `json:"joined_at" jsonschema:"RFC3339 timestamp the reviewer joined"`
	CommitmentDeadline string `json:"commitment_deadline,omitempty" jsonschema:"RFC3339 lock-in deadline while pending"`
	LockedInAt         string `json:"locked_in_at,omitempty" jsonschema:"RFC3339 timestamp the reviewer locked in"`
	RemovedAt          string `json:"removed_at,omitempty" jsonschema:"RFC3339 timestamp the reviewer was removed"`
	RemovalReason      string `json:"removal_reason,omitempty" jsonschema:"why the reviewer was removed"`
}

// ListTeamResult is the list_team tool output.
type ListTeamResult struct {
	Members []TeamMember `json:"members" jsonschema:"reviewer team in join order"`
}

// TimelineEvent is one event row in the list_timeline tool output. The
// payload is the event's JSON detail rendered as a string.
type TimelineEvent struct {
	Seq       int64  `json:"seq" jsonschema:"per-activity sequence number"`
	EventType string `json:"event_type" jsonschema:"semantic event name"`
	FromStage string `json:"from_stage,omitempty" jsonschema:"stage before a transition"`
	ToStage   string `json:"to_stage,omitempty" jsonschema:"stage after a transition"`
	ActorID   *int64 `json:"actor_id,omitempty" jsonschema:"account that caused the event, absent for system events"`
	Payload   string `json:"payload,omitempty" jsonschema:"event detail as a JSON string"`
	CreatedAt string `json:"created_at" jsonschema:"RFC3339 timestamp"`
}

// ListTimelineResult is the list_timeline tool output.
type ListTimelineResult struct {
	Events        []TimelineEvent `json:"events" jsonschema:"timeline page in sequence order"`
	NextPageToken string          `json:"next_page_token,omitempty" jsonschema:"token for the next page, empty on the last page"`
}

// TimelineQuery narrows a timeline listing.
type TimelineQuery struct {
	Filter    string
	PageSize  int
	PageToken string
	Order     string
}

// ReviewReader is the read-only slice of the review API the tools consume.
type ReviewReader interface {
	Wallet(ctx context.Context, ownerID int64) (WalletResult, error)
	Activity(ctx context.Context, ref string) (ActivityResult, error)
	Team(ctx context.Context, ref string) (ListTeamResult, error)
	Timeline(ctx context.Context, ref string, query TimelineQuery) (ListTimelineResult, error)
}

// APIClient implements ReviewReader over the review HTTP JSON API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient builds a review API client. A nil httpClient falls back to
// a default with a request timeout.
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// Wallet fetches an account's wallet.
func (c *APIClient) Wallet(ctx context.Context, ownerID int64) (WalletResult, error) {
	var out WalletResult
	err := c.getJSON(ctx, fmt.Sprintf("/v1/wallets/%d", ownerID), nil, &out)
	return out, err
}

// Activity fetches an activity by id or external UUID.
func (c *APIClient) Activity(ctx context.Context, ref string) (ActivityResult, error) {
	var out ActivityResult
	err := c.getJSON(ctx, "/v1/activities/"+url.PathEscape(ref), nil, &out)
	return out, err
}

// Team fetches an activity's reviewer team.
func (c *APIClient) Team(ctx context.Context, ref string) (ListTeamResult, error) {
	var out ListTeamResult
	err := c.getJSON(ctx, "/v1/activities/"+url.PathEscape(ref)+"/team", nil, &out)
	return out, err
}

// Timeline fetches one page of an activity's timeline.
func (c *APIClient) Timeline(ctx context.Context, ref string, query TimelineQuery) (ListTimelineResult, error) {
	values := url.Values{}
	if strings.TrimSpace(query.Filter) != "" {
		values.Set("filter", query.Filter)
	}
	if query.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(query.PageSize))
	}
	if query.PageToken != "" {
		values.Set("page_token", query.PageToken)
	}
	if query.Order != "" {
		values.Set("order", query.Order)
	}

	var wire struct {
		Events []struct {
			Seq       int64           `json:"seq"`
			EventType string          `json:"event_type"`
			FromStage string          `json:"from_stage"`
			ToStage   string          `json:"to_stage"`
			ActorID   *int64          `json:"actor_id"`
			Payload   json.RawMessage `json:"payload"`
			CreatedAt string          `json:"created_at"`
		} `json:"events"`
		NextPageToken string `json:"next_page_token"`
	}
	if err := c.getJSON(ctx, "/v1/activities/"+url.PathEscape(ref)+"/timeline", values, &wire); err != nil {
		return ListTimelineResult{}, err
	}

	result := ListTimelineResult{
		Events:        make([]TimelineEvent, 0, len(wire.Events)),
		NextPageToken: wire.NextPageToken,
	}
	for _, evt := range wire.Events {
		result.Events = append(result.Events, TimelineEvent{
			Seq:       evt.Seq,
			EventType: evt.EventType,
			FromStage: evt.FromStage,
			ToStage:   evt.ToStage,
			ActorID:   evt.ActorID,
			Payload:   string(evt.Payload),
			CreatedAt: evt.CreatedAt,
		})
	}
	return result, nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	target := c.baseURL + path
	if len(values) > 0 {
		target += "?" + values.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build review request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call review API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode review response: %w", err)
	}
	return nil
}

// decodeAPIError maps the review error envelope onto a typed error so the
// tool output carries the review code, not a bare status number.
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
