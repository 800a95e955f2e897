package team

import (
	"testing"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
)

func TestJoin(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	m, err := Join("act-1", 7, false, 0, 3, now, DefaultCommitmentWindow)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if m.Status != StatusJoined {
		t.Fatalf("status = %v, want joined", m.Status)
	}
	if m.CommitmentDeadline == nil {
		t.Fatal("expected commitment deadline")
	}
	want := now.Add(72 * time.Hour)
	if !m.CommitmentDeadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", m.CommitmentDeadline, want)
	}
}

func TestJoinRejections(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		exists      bool
		activeCount int
		limit       int
		wantCode    apperrors.Code
	}{
		{name: "already member", exists: true, activeCount: 1, limit: 3, wantCode: apperrors.CodeTeamAlreadyMember},
		{name: "team full", activeCount: 3, limit: 3, wantCode: apperrors.CodeTeamFull},
		{name: "over capacity", activeCount: 4, limit: 3, wantCode: apperrors.CodeTeamFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Join("act-1", 7, tt.exists, tt.activeCount, tt.limit, now, DefaultCommitmentWindow)
			if !apperrors.IsCode(err, tt.wantCode) {
				t.Fatalf("code = %v, want %v", apperrors.GetCode(err), tt.wantCode)
			}
		})
	}
}

func TestJoinZeroLimitAllowsAny(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	if _, err := Join("act-1", 7, false, 50, 0, now, DefaultCommitmentWindow); err != nil {
		t.Fatalf("Join with unlimited team: %v", err)
	}
}

func TestJoinDefaultsWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	m, err := Join("act-1", 7, false, 0, 3, now, 0)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !m.CommitmentDeadline.Equal(now.Add(DefaultCommitmentWindow)) {
		t.Fatalf("deadline = %v, want default window", m.CommitmentDeadline)
	}
}

func TestLockIn(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	joined, err := Join("act-1", 7, false, 0, 3, now, DefaultCommitmentWindow)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}

	lockAt := now.Add(time.Hour)
	locked, err := LockIn(joined, true, lockAt)
	if err != nil {
		t.Fatalf("LockIn: %v", err)
	}
	if locked.Status != StatusLockedIn {
		t.Fatalf("status = %v, want locked_in", locked.Status)
	}
	if locked.CommitmentDeadline != nil {
		t.Fatal("expected deadline cleared on lock-in")
	}
	if locked.LockedInAt == nil || !locked.LockedInAt.Equal(lockAt) {
		t.Fatalf("LockedInAt = %v, want %v", locked.LockedInAt, lockAt)
	}
}

func TestLockInRejections(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	if _, err := LockIn(Membership{}, false, now); !apperrors.IsCode(err, apperrors.CodeTeamNotAMember) {
		t.Fatalf("expected NOT_A_MEMBER, got %v", err)
	}

	for _, status := range []Status{StatusLockedIn, StatusRemoved} {
		_, err := LockIn(Membership{Status: status}, true, now)
		if !apperrors.IsCode(err, apperrors.CodeTeamInvalidState) {
			t.Fatalf("status %v: expected INVALID_STATE, got %v", status, err)
		}
		meta := apperrors.GetMetadata(err)
		if meta["Status"] != string(status) {
			t.Fatalf("metadata status = %q, want %q", meta["Status"], status)
		}
	}
}

func TestRemove(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	joined, err := Join("act-1", 7, false, 0, 3, now, DefaultCommitmentWindow)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}

	removed, err := Remove(joined, true, "spam submissions", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed.Status != StatusRemoved {
		t.Fatalf("status = %v, want removed", removed.Status)
	}
	if removed.RemovalReason != "spam submissions" {
		t.Fatalf("reason = %q", removed.RemovalReason)
	}
	if removed.RemovedAt == nil {
		t.Fatal("expected RemovedAt set")
	}

	if _, err := Remove(removed, true, "again", now); !apperrors.IsCode(err, apperrors.CodeTeamInvalidState) {
		t.Fatalf("expected INVALID_STATE on double removal, got %v", err)
	}
	if _, err := Remove(joined, true, "  ", now); !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected INVALID_ARGUMENT on blank reason, got %v", err)
	}
	if _, err := Remove(Membership{}, false, "reason", now); !apperrors.IsCode(err, apperrors.CodeTeamNotAMember) {
		t.Fatalf("expected NOT_A_MEMBER, got %v", err)
	}
}

func TestSweepEligible(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		m    Membership
		want bool
	}{
		{name: "expired joined", m: Membership{Status: StatusJoined, CommitmentDeadline: &past}, want: true},
		{name: "deadline not reached", m: Membership{Status: StatusJoined, CommitmentDeadline: &future}, want: false},
		{name: "no deadline", m: Membership{Status: StatusJoined}, want: false},
		{name: "locked in", m: Membership{Status: StatusLockedIn, CommitmentDeadline: &past}, want: false},
		{name: "already removed", m: Membership{Status: StatusRemoved, CommitmentDeadline: &past}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SweepEligible(tt.m, now); got != tt.want {
				t.Fatalf("SweepEligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSweepRemove(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	m := Membership{ActivityID: "act-1", UserID: 7, Status: StatusJoined, CommitmentDeadline: &past}
	removed, err := SweepRemove(m, now)
	if err != nil {
		t.Fatalf("SweepRemove: %v", err)
	}
	if removed.Status != StatusRemoved {
		t.Fatalf("status = %v, want removed", removed.Status)
	}
	if removed.RemovalReason != RemovalReasonCommitmentTimeout {
		t.Fatalf("reason = %q, want %q", removed.RemovalReason, RemovalReasonCommitmentTimeout)
	}

	// A second sweep over the already-removed row is a state error the
	// caller filters out by only selecting joined rows.
	if _, err := SweepRemove(removed, now); !apperrors.IsCode(err, apperrors.CodeTeamInvalidState) {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}
}

func TestCounts(t *testing.T) {
	members := []Membership{
		{Status: StatusJoined},
		{Status: StatusLockedIn},
		{Status: StatusLockedIn},
		{Status: StatusRemoved},
	}
	if got := CountActive(members); got != 3 {
		t.Fatalf("CountActive = %d, want 3", got)
	}
	if got := CountLockedIn(members); got != 2 {
		t.Fatalf("CountLockedIn = %d, want 2", got)
	}
	if got := CountActive(nil); got != 0 {
		t.Fatalf("CountActive(nil) = %d, want 0", got)
	}
}
