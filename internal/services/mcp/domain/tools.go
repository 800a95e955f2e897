package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GetWalletInput identifies the wallet to fetch.
type GetWalletInput struct {
	OwnerID int64 `json:"owner_id" jsonschema:"account id that owns the wallet"`
}

// GetActivityInput identifies the activity to fetch.
type GetActivityInput struct {
	ActivityID string `json:"activity_id" jsonschema:"activity id or external UUID"`
}

// ListTeamInput identifies the activity whose reviewer team to list.
type ListTeamInput struct {
	ActivityID string `json:"activity_id" jsonschema:"activity id or external UUID"`
}

// ListTimelineInput identifies the activity and the timeline page to list.
type ListTimelineInput struct {
	ActivityID string `json:"activity_id" jsonschema:"activity id or external UUID"`
	Filter     string `json:"filter,omitempty" jsonschema:"AIP-160 filter, e.g. event_type = \"stage_advanced\""`
	PageSize   int    `json:"page_size,omitempty" jsonschema:"events per page, server default when omitted"`
	PageToken  string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
	Order      string `json:"order,omitempty" jsonschema:"asc or desc by sequence number"`
}

// GetWalletTool describes the wallet lookup tool.
func GetWalletTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_wallet",
		Description: "Fetch an account's token wallet: current balance and last ledger update.",
	}
}

// GetWalletHandler fetches a wallet through the review API.
func GetWalletHandler(reader ReviewReader) mcp.ToolHandlerFor[GetWalletInput, WalletResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetWalletInput) (*mcp.CallToolResult, WalletResult, error) {
		if input.OwnerID <= 0 {
			return nil, WalletResult{}, fmt.Errorf("owner_id must be positive")
		}
		wallet, err := reader.Wallet(ctx, input.OwnerID)
		if err != nil {
			return nil, WalletResult{}, fmt.Errorf("get wallet %d: %w", input.OwnerID, err)
		}
		return nil, wallet, nil
	}
}

// GetActivityTool describes the activity lookup tool.
func GetActivityTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_activity",
		Description: "Fetch a review activity: stage, round, funding, escrow, and moderation state.",
	}
}

// GetActivityHandler fetches an activity through the review API.
func GetActivityHandler(reader ReviewReader) mcp.ToolHandlerFor[GetActivityInput, ActivityResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetActivityInput) (*mcp.CallToolResult, ActivityResult, error) {
		ref := strings.TrimSpace(input.ActivityID)
		if ref == "" {
			return nil, ActivityResult{}, fmt.Errorf("activity_id is required")
		}
		activity, err := reader.Activity(ctx, ref)
		if err != nil {
			return nil, ActivityResult{}, fmt.Errorf("get activity %s: %w", ref, err)
		}
		return nil, activity, nil
	}
}

// ListTeamTool describes the reviewer team listing tool.
func ListTeamTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_team",
		Description: "List an activity's reviewer team with membership status and lock-in timestamps.",
	}
}

// ListTeamHandler lists a reviewer team through the review API.
func ListTeamHandler(reader ReviewReader) mcp.ToolHandlerFor[ListTeamInput, ListTeamResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListTeamInput) (*mcp.CallToolResult, ListTeamResult, error) {
		ref := strings.TrimSpace(input.ActivityID)
		if ref == "" {
			return nil, ListTeamResult{}, fmt.Errorf("activity_id is required")
		}
		team, err := reader.Team(ctx, ref)
		if err != nil {
			return nil, ListTeamResult{}, fmt.Errorf("list team for %s: %w", ref, err)
		}
		return nil, team, nil
	}
}

// ListTimelineTool describes the timeline listing tool.
func ListTimelineTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_timeline",
		Description: "List an activity's timeline events, optionally filtered, newest or oldest first.",
	}
}

// ListTimelineHandler lists timeline events through the review API.
func ListTimelineHandler(reader ReviewReader) mcp.ToolHandlerFor[ListTimelineInput, ListTimelineResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListTimelineInput) (*mcp.CallToolResult, ListTimelineResult, error) {
		ref := strings.TrimSpace(input.ActivityID)
		if ref == "" {
			return nil, ListTimelineResult{}, fmt.Errorf("activity_id is required")
		}
		if input.PageSize < 0 {
			return nil, ListTimelineResult{}, fmt.Errorf("page_size must not be negative")
		}
		timeline, err := reader.Timeline(ctx, ref, TimelineQuery{
			Filter:    input.Filter,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
			Order:     input.Order,
		})
		if err != nil {
			return nil, ListTimelineResult{}, fmt.Errorf("list timeline for %s: %w", ref, err)
		}
		return nil, timeline, nil
	}
}
