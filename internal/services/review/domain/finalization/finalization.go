// Package finalization tracks per-reviewer agreement on a shared
// assessment document. Agreement is invalidated in bulk whenever the
// document's content hash changes, forcing every reviewer to re-affirm.
package finalization

import "time"

// Status is one reviewer's agreement record for an activity's assessment.
type Status struct {
	ActivityID  string
	ReviewerID  int64
	IsFinalized bool
	FinalizedAt *time.Time
	ContentHash string
}

// Toggle computes the updated agreement row for a reviewer. Finalizing
// stamps the time and the hash the reviewer saw; withdrawing clears both.
func Toggle(activityID string, reviewerID int64, finalized bool, contentHash string, now time.Time) Status {
	s := Status{
		ActivityID: activityID,
		ReviewerID: reviewerID,
	}
	if finalized {
		at := now.UTC()
		s.IsFinalized = true
		s.FinalizedAt = &at
		s.ContentHash = contentHash
	}
	return s
}

// AllFinalized reports whether every active reviewer has finalized. An
// empty team is never finalized; stale agreement rows from removed
// reviewers do not count.
func AllFinalized(activeReviewerIDs []int64, finalized map[int64]bool) bool {
	if len(activeReviewerIDs) == 0 {
		return false
	}
	for _, id := range activeReviewerIDs {
		if !finalized[id] {
			return false
		}
	}
	return true
}

// ContentChanged reports whether a new snapshot hash invalidates existing
// agreements.
func ContentChanged(storedHash, newHash string) bool {
	return storedHash != newHash
}
