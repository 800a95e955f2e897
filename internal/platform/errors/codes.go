// Package errors provides structured error handling with i18n support.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Ledger errors
	CodeLedgerAmountInvalid     Code = "LEDGER_AMOUNT_INVALID"
	CodeLedgerDescriptionEmpty  Code = "LEDGER_DESCRIPTION_EMPTY"
	CodeLedgerDuplicateEntry    Code = "LEDGER_DUPLICATE_ENTRY"
	CodeLedgerInsufficientFunds Code = "INSUFFICIENT_FUNDS"

	// Escrow/award errors
	CodeEscrowExhausted  Code = "ESCROW_EXHAUSTED"
	CodeEscrowClosed     Code = "ESCROW_CLOSED"
	CodeAwardSelf        Code = "SELF_AWARD"
	CodeAwardDuplicate   Code = "DUPLICATE_AWARD"
	CodeAwardTypeUnknown Code = "AWARD_TYPE_UNKNOWN"

	// Team membership errors
	CodeTeamAlreadyMember Code = "ALREADY_MEMBER"
	CodeTeamFull          Code = "TEAM_FULL"
	CodeTeamNotAMember    Code = "NOT_A_MEMBER"
	CodeTeamInvalidState  Code = "INVALID_STATE"

	// Template/stage-graph errors
	CodeTemplateInvalid          Code = "TEMPLATE_INVALID"
	CodeTemplateUnknownPredicate Code = "TEMPLATE_UNKNOWN_PREDICATE"
	CodeTemplateNotFound         Code = "TEMPLATE_NOT_FOUND"

	// Activity/progression errors
	CodeActivityNotFound       Code = "ACTIVITY_NOT_FOUND"
	CodeActivityFundingInvalid Code = "ACTIVITY_FUNDING_INVALID"
	CodeActivitySuspended      Code = "ACTIVITY_SUSPENDED"
	CodeInvalidTransition      Code = "INVALID_TRANSITION"

	// Paper errors
	CodePaperTitleEmpty Code = "PAPER_TITLE_EMPTY"

	// Generic validation
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Caller identity errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Concurrency errors
	CodeConflict Code = "CONFLICT"

	// Integrity errors indicate a core bug and are never retried.
	CodeIntegrity Code = "INTEGRITY_VIOLATION"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeLedgerAmountInvalid,
		CodeLedgerDescriptionEmpty,
		CodeAwardSelf,
		CodeAwardTypeUnknown,
		CodeTemplateInvalid,
		CodeTemplateUnknownPredicate,
		CodeActivityFundingInvalid,
		CodePaperTitleEmpty,
		CodeInvalidArgument:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeLedgerInsufficientFunds,
		CodeEscrowExhausted,
		CodeEscrowClosed,
		CodeTeamFull,
		CodeTeamNotAMember,
		CodeTeamInvalidState,
		CodeActivitySuspended,
		CodeInvalidTransition:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeActivityNotFound,
		CodeTemplateNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeTeamAlreadyMember,
		CodeAwardDuplicate,
		CodeLedgerDuplicateEntry:
		return codes.AlreadyExists

	// Aborted - transient concurrency conflict, retryable
	case CodeConflict:
		return codes.Aborted

	// Unauthenticated - missing or invalid caller identity
	case CodeUnauthenticated:
		return codes.Unauthenticated

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes for the JSON API.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
