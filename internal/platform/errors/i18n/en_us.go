package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown = "UNKNOWN"

	CodeLedgerAmountInvalid     = "LEDGER_AMOUNT_INVALID"
	CodeLedgerDescriptionEmpty  = "LEDGER_DESCRIPTION_EMPTY"
	CodeLedgerDuplicateEntry    = "LEDGER_DUPLICATE_ENTRY"
	CodeLedgerInsufficientFunds = "INSUFFICIENT_FUNDS"

	CodeEscrowExhausted  = "ESCROW_EXHAUSTED"
	CodeEscrowClosed     = "ESCROW_CLOSED"
	CodeAwardSelf        = "SELF_AWARD"
	CodeAwardDuplicate   = "DUPLICATE_AWARD"
	CodeAwardTypeUnknown = "AWARD_TYPE_UNKNOWN"

	CodeTeamAlreadyMember = "ALREADY_MEMBER"
	CodeTeamFull          = "TEAM_FULL"
	CodeTeamNotAMember    = "NOT_A_MEMBER"
	CodeTeamInvalidState  = "INVALID_STATE"

	CodeTemplateInvalid          = "TEMPLATE_INVALID"
	CodeTemplateUnknownPredicate = "TEMPLATE_UNKNOWN_PREDICATE"
	CodeTemplateNotFound         = "TEMPLATE_NOT_FOUND"

	CodeActivityNotFound       = "ACTIVITY_NOT_FOUND"
	CodeActivityFundingInvalid = "ACTIVITY_FUNDING_INVALID"
	CodeActivitySuspended      = "ACTIVITY_SUSPENDED"
	CodeInvalidTransition      = "INVALID_TRANSITION"

	CodePaperTitleEmpty = "PAPER_TITLE_EMPTY"

	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeIntegrity       = "INTEGRITY_VIOLATION"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		CodeUnknown: "An unexpected error occurred",

		// Ledger errors
		CodeLedgerAmountInvalid:     "Token amount must be a positive integer",
		CodeLedgerDescriptionEmpty:  "Ledger entry description cannot be empty",
		CodeLedgerDuplicateEntry:    "An identical token movement was recorded moments ago",
		CodeLedgerInsufficientFunds: "Insufficient funds: balance {{.Balance}}, required {{.Required}}",

		// Escrow/award errors
		CodeEscrowExhausted:  "Activity escrow has {{.EscrowBalance}} tokens left, award needs {{.Points}}",
		CodeEscrowClosed:     "Activity escrow is already closed",
		CodeAwardSelf:        "You cannot give an award to yourself",
		CodeAwardDuplicate:   "You already gave a {{.AwardType}} award in round {{.Round}}",
		CodeAwardTypeUnknown: "Unknown award type: {{.AwardType}}",

		// Team membership errors
		CodeTeamAlreadyMember: "You already joined this reviewer team",
		CodeTeamFull:          "The reviewer team is full ({{.Limit}} members)",
		CodeTeamNotAMember:    "You are not a member of this reviewer team",
		CodeTeamInvalidState:  "Membership state {{.Status}} does not allow {{.Operation}}",

		// Template errors
		CodeTemplateInvalid:          "Workflow template is invalid: {{.Detail}}",
		CodeTemplateUnknownPredicate: "Unknown condition predicate: {{.Predicate}}",
		CodeTemplateNotFound:         "Workflow template was not found",

		// Activity/progression errors
		CodeActivityNotFound:       "Activity was not found",
		CodeActivityFundingInvalid: "Funding amount must be a positive integer",
		CodeActivitySuspended:      "This activity is suspended by moderation",
		CodeInvalidTransition:      "Transition {{.TransitionID}} is not declared from stage {{.Stage}}",

		// Paper errors
		CodePaperTitleEmpty: "Paper title cannot be empty",

		// Generic errors
		CodeInvalidArgument: "The request is invalid",
		CodeUnauthenticated: "The request carries no valid caller identity",
		CodeNotFound:        "The requested resource was not found",
		CodeConflict:        "The operation conflicted with a concurrent change, please retry",
		CodeIntegrity:       "An internal consistency check failed",
	},
}
