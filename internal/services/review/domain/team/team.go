// Package team implements the reviewer membership state machine: join with
// a commitment deadline, lock-in before it elapses, and removal either for
// cause or by the expired-commitment sweep.
package team

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
)

// Status labels a membership's lifecycle state.
type Status string

const (
	StatusJoined   Status = "joined"
	StatusLockedIn Status = "locked_in"
	StatusRemoved  Status = "removed"
)

// Valid reports whether the status is a known lifecycle label.
func (s Status) Valid() bool {
	switch s {
	case StatusJoined, StatusLockedIn, StatusRemoved:
		return true
	}
	return false
}

// Active reports whether the member still counts toward team size and
// finalization quorums.
func (s Status) Active() bool {
	return s == StatusJoined || s == StatusLockedIn
}

// DefaultCommitmentWindow is how long a joined reviewer has to lock in
// before the sweep removes them.
const DefaultCommitmentWindow = 72 * time.Hour

// RemovalReasonCommitmentTimeout marks sweep-driven removals.
const RemovalReasonCommitmentTimeout = "commitment timeout"

// Membership is one reviewer's participation record on an activity.
// Unique per (activity, user); the row survives removal for audit.
type Membership struct {
	ActivityID         string
	UserID             int64
	Status             Status
	JoinedAt           time.Time
	CommitmentDeadline *time.Time
	LockedInAt         *time.Time
	RemovedAt          *time.Time
	RemovalReason      string
}

// Join decides a join request against current team facts. Exists reports
// whether any membership row (regardless of status) is already present;
// activeCount and limit come from the activity's template.
func Join(activityID string, userID int64, exists bool, activeCount, limit int, now time.Time, window time.Duration) (Membership, error) {
	if exists {
		return Membership{}, apperrors.New(apperrors.CodeTeamAlreadyMember, "membership already exists")
	}
	if limit > 0 && activeCount >= limit {
		return Membership{}, apperrors.WithMetadata(apperrors.CodeTeamFull,
			"reviewer team is full",
			map[string]string{"Limit": strconv.Itoa(limit)})
	}
	if window <= 0 {
		window = DefaultCommitmentWindow
	}
	deadline := now.UTC().Add(window)
	return Membership{
		ActivityID:         activityID,
		UserID:             userID,
		Status:             StatusJoined,
		JoinedAt:           now.UTC(),
		CommitmentDeadline: &deadline,
	}, nil
}

// LockIn transitions a joined member to locked_in, clearing the
// commitment deadline. Found reports whether a membership row was loaded.
func LockIn(m Membership, found bool, now time.Time) (Membership, error) {
	if !found {
		return Membership{}, apperrors.New(apperrors.CodeTeamNotAMember, "no membership for user")
	}
	if m.Status != StatusJoined {
		return Membership{}, invalidState(m.Status, "lock_in")
	}
	lockedAt := now.UTC()
	m.Status = StatusLockedIn
	m.LockedInAt = &lockedAt
	m.CommitmentDeadline = nil
	return m, nil
}

// Remove transitions an active member to removed with a reason. Used for
// removal-for-cause; the sweep path goes through SweepRemove.
func Remove(m Membership, found bool, reason string, now time.Time) (Membership, error) {
	if !found {
		return Membership{}, apperrors.New(apperrors.CodeTeamNotAMember, "no membership for user")
	}
	if !m.Status.Active() {
		return Membership{}, invalidState(m.Status, "remove")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Membership{}, apperrors.New(apperrors.CodeInvalidArgument, "removal reason is required")
	}
	removedAt := now.UTC()
	m.Status = StatusRemoved
	m.RemovedAt = &removedAt
	m.RemovalReason = reason
	m.CommitmentDeadline = nil
	return m, nil
}

// SweepEligible reports whether the membership is a joined row whose
// commitment deadline elapsed without lock-in. Rows already locked in or
// removed are never eligible, which keeps the sweep idempotent.
func SweepEligible(m Membership, now time.Time) bool {
	if m.Status != StatusJoined {
		return false
	}
	if m.CommitmentDeadline == nil {
		return false
	}
	return m.CommitmentDeadline.Before(now)
}

// SweepRemove applies the sweep removal to an eligible membership.
func SweepRemove(m Membership, now time.Time) (Membership, error) {
	if !SweepEligible(m, now) {
		return Membership{}, invalidState(m.Status, "sweep")
	}
	return Remove(m, true, RemovalReasonCommitmentTimeout, now)
}

// CountActive counts members that still participate in team-size and
// finalization checks.
func CountActive(members []Membership) int {
	count := 0
	for _, m := range members {
		if m.Status.Active() {
			count++
		}
	}
	return count
}

// CountLockedIn counts members that completed their commitment.
func CountLockedIn(members []Membership) int {
	count := 0
	for _, m := range members {
		if m.Status == StatusLockedIn {
			count++
		}
	}
	return count
}

func invalidState(status Status, operation string) error {
	return apperrors.WithMetadata(apperrors.CodeTeamInvalidState,
		"membership state does not allow operation",
		map[string]string{
			"Status":    string(status),
			"Operation": operation,
		})
}
