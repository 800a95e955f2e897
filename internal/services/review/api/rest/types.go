package rest

import (
	"encoding/json"
	"time"

	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/activity"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/escrow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/finalization"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/ledger"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/team"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// Response payloads. Times render as RFC 3339 UTC strings.

type activityPayload struct {
	ID              string  `json:"id"`
	UUID            string  `json:"uuid"`
	PaperID         string  `json:"paper_id"`
	CreatorID       int64   `json:"creator_id"`
	ActivityType    string  `json:"activity_type"`
	TemplateID      string  `json:"template_id"`
	Funding         int64   `json:"funding"`
	EscrowRemaining int64   `json:"escrow_remaining"`
	CurrentStage    string  `json:"current_stage"`
	CurrentRound    int     `json:"current_round"`
	StageEnteredAt  string  `json:"stage_entered_at"`
	StageDeadline   *string `json:"stage_deadline,omitempty"`
	Moderation      string  `json:"moderation"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toActivityPayload(act activity.Activity) activityPayload {
	return activityPayload{
		ID:              act.ID,
		UUID:            act.ExternalUUID,
		PaperID:         act.PaperID,
		CreatorID:       act.CreatorID,
		ActivityType:    string(act.ActivityType),
		TemplateID:      act.TemplateID,
		Funding:         act.Escrow.Funding,
		EscrowRemaining: act.Escrow.Remaining,
		CurrentStage:    act.CurrentStage,
		CurrentRound:    act.CurrentRound,
		StageEnteredAt:  formatTime(act.StageEnteredAt),
		StageDeadline:   formatTimePtr(act.StageDeadline),
		Moderation:      string(act.Moderation),
		CreatedAt:       formatTime(act.CreatedAt),
		UpdatedAt:       formatTime(act.UpdatedAt),
	}
}

type paperPayload struct {
	ID        string `json:"id"`
	UUID      string `json:"uuid"`
	Title     string `json:"title"`
	CreatorID int64  `json:"creator_id"`
	CreatedAt string `json:"created_at"`
}

func toPaperPayload(p storage.Paper) paperPayload {
	return paperPayload{
		ID:        p.ID,
		UUID:      p.ExternalUUID,
		Title:     p.Title,
		CreatorID: p.CreatorID,
		CreatedAt: formatTime(p.CreatedAt),
	}
}

type membershipPayload struct {
	ActivityID         string  `json:"activity_id"`
	UserID             int64   `json:"user_id"`
	Status             string  `json:"status"`
	JoinedAt           string  `json:"joined_at"`
	CommitmentDeadline *string `json:"commitment_deadline,omitempty"`
	LockedInAt         *string `json:"locked_in_at,omitempty"`
	RemovedAt          *string `json:"removed_at,omitempty"`
	RemovalReason      string  `json:"removal_reason,omitempty"`
}

func toMembershipPayload(m team.Membership) membershipPayload {
	return membershipPayload{
		ActivityID:         m.ActivityID,
		UserID:             m.UserID,
		Status:             string(m.Status),
		JoinedAt:           formatTime(m.JoinedAt),
		CommitmentDeadline: formatTimePtr(m.CommitmentDeadline),
		LockedInAt:         formatTimePtr(m.LockedInAt),
		RemovedAt:          formatTimePtr(m.RemovedAt),
		RemovalReason:      m.RemovalReason,
	}
}

type awardPayload struct {
	ID         string `json:"id"`
	ActivityID string `json:"activity_id"`
	Round      int    `json:"round"`
	GiverID    int64  `json:"giver_id"`
	ReceiverID int64  `json:"receiver_id"`
	AwardType  string `json:"award_type"`
	Points     int64  `json:"points"`
	GivenAt    string `json:"given_at"`
}

func toAwardPayload(a escrow.Award) awardPayload {
	return awardPayload{
		ID:         a.ID,
		ActivityID: a.ActivityID,
		Round:      a.Round,
		GiverID:    a.GiverID,
		ReceiverID: a.ReceiverID,
		AwardType:  a.AwardType,
		Points:     a.Points,
		GivenAt:    formatTime(a.GivenAt),
	}
}

type finalizationPayload struct {
	ReviewerID  int64   `json:"reviewer_id"`
	IsFinalized bool    `json:"is_finalized"`
	FinalizedAt *string `json:"finalized_at,omitempty"`
	ContentHash string  `json:"content_hash,omitempty"`
}

func toFinalizationPayload(s finalization.Status) finalizationPayload {
	return finalizationPayload{
		ReviewerID:  s.ReviewerID,
		IsFinalized: s.IsFinalized,
		FinalizedAt: formatTimePtr(s.FinalizedAt),
		ContentHash: s.ContentHash,
	}
}

type walletPayload struct {
	OwnerID     int64  `json:"owner_id"`
	Balance     int64  `json:"balance"`
	LastUpdated string `json:"last_updated,omitempty"`
}

func toWalletPayload(w ledger.Wallet) walletPayload {
	p := walletPayload{OwnerID: w.OwnerID, Balance: w.Balance}
	if !w.LastUpdated.IsZero() {
		p.LastUpdated = formatTime(w.LastUpdated)
	}
	return p
}

type entryPayload struct {
	ID                int64  `json:"id"`
	OwnerID           int64  `json:"owner_id"`
	CounterpartyID    *int64 `json:"counterparty_id,omitempty"`
	Amount            int64  `json:"amount"`
	Kind              string `json:"kind"`
	Origin            string `json:"origin"`
	RelatedActivityID string `json:"related_activity_id,omitempty"`
	Description       string `json:"description"`
	CreatedAt         string `json:"created_at"`
}

func toEntryPayload(e ledger.Entry) entryPayload {
	return entryPayload{
		ID:                e.ID,
		OwnerID:           e.OwnerID,
		CounterpartyID:    e.CounterpartyID,
		Amount:            e.Amount,
		Kind:              string(e.Kind),
		Origin:            string(e.Origin),
		RelatedActivityID: e.RelatedActivityID,
		Description:       e.Description,
		CreatedAt:         formatTime(e.CreatedAt),
	}
}

type timelineEventPayload struct {
	Seq       int64           `json:"seq"`
	EventType string          `json:"event_type"`
	FromStage string          `json:"from_stage,omitempty"`
	ToStage   string          `json:"to_stage,omitempty"`
	ActorID   *int64          `json:"actor_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}

func toTimelineEventPayload(evt storage.TimelineEvent) timelineEventPayload {
	payload := json.RawMessage(evt.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return timelineEventPayload{
		Seq:       evt.Seq,
		EventType: evt.EventType,
		FromStage: evt.FromStage,
		ToStage:   evt.ToStage,
		ActorID:   evt.ActorID,
		Payload:   payload,
		CreatedAt: formatTime(evt.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
