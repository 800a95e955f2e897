// Package filter provides AIP-160 filter expression parsing and SQL
// translation for the review service's list endpoints.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// SQLCondition is a WHERE clause fragment with positional parameters.
type SQLCondition struct {
	// Clause is the SQL fragment (e.g., "event_type = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// translator maps declared filter fields onto the columns of one table.
type translator struct {
	columns map[string]string
}

// timelineTranslator covers the timeline_events list surface.
var timelineTranslator = translator{columns: map[string]string{
	"event_type": "event_type",
	"from_stage": "from_stage",
	"to_stage":   "to_stage",
	"actor_id":   "actor_id",
	"created_at": "created_at",
}}

// entryTranslator covers the ledger_entries list surface.
var entryTranslator = translator{columns: map[string]string{
	"kind":                "kind",
	"origin":              "origin",
	"related_activity_id": "related_activity_id",
	"counterparty_id":     "counterparty_id",
	"amount":              "amount",
	"created_at":          "created_at",
}}

// TimelineDeclarations returns the field declarations for timeline
// event filtering.
func TimelineDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("event_type", filtering.TypeString),
		filtering.DeclareIdent("from_stage", filtering.TypeString),
		filtering.DeclareIdent("to_stage", filtering.TypeString),
		filtering.DeclareIdent("actor_id", filtering.TypeInt),
		filtering.DeclareIdent("created_at", filtering.TypeTimestamp),
	)
}

// EntryDeclarations returns the field declarations for ledger entry
// filtering.
func EntryDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("kind", filtering.TypeString),
		filtering.DeclareIdent("origin", filtering.TypeString),
		filtering.DeclareIdent("related_activity_id", filtering.TypeString),
		filtering.DeclareIdent("counterparty_id", filtering.TypeInt),
		filtering.DeclareIdent("amount", filtering.TypeInt),
		filtering.DeclareIdent("created_at", filtering.TypeTimestamp),
	)
}

// ParseTimelineFilter parses an AIP-160 expression against the timeline
// event fields and returns a SQL condition. An empty filter string yields
// an empty condition.
func ParseTimelineFilter(filterStr string) (SQLCondition, error) {
	return parse(filterStr, TimelineDeclarations, timelineTranslator)
}

// ParseEntryFilter parses an AIP-160 expression against the ledger entry
// fields and returns a SQL condition. An empty filter string yields an
// empty condition.
func ParseEntryFilter(filterStr string) (SQLCondition, error) {
	return parse(filterStr, EntryDeclarations, entryTranslator)
}

func parse(filterStr string, decls func() (*filtering.Declarations, error), tr translator) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}

	d, err := decls()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}

	parsed, err := filtering.ParseFilterString(filterStr, d)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}

	return tr.translateExpr(parsed.CheckedExpr.Expr)
}

func (tr translator) translateExpr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return tr.translateCall(kind.CallExpr)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func (tr translator) translateCall(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case "_&&_", "AND":
		return tr.translateBinary(call.Args, "AND")
	case "_||_", "OR":
		return tr.translateBinary(call.Args, "OR")
	case "_!_", "NOT":
		return tr.translateNot(call.Args)
	case "_==_", "=":
		return tr.translateComparison(call.Args, "=")
	case "_!=_", "!=":
		return tr.translateComparison(call.Args, "!=")
	case "_<_", "<":
		return tr.translateComparison(call.Args, "<")
	case "_<=_", "<=":
		return tr.translateComparison(call.Args, "<=")
	case "_>_", ">":
		return tr.translateComparison(call.Args, ">")
	case "_>=_", ">=":
		return tr.translateComparison(call.Args, ">=")
	default:
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func (tr translator) translateBinary(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s requires 2 arguments", op)
	}

	left, err := tr.translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	right, err := tr.translateExpr(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func (tr translator) translateNot(args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 1 {
		return SQLCondition{}, fmt.Errorf("NOT requires 1 argument")
	}

	inner, err := tr.translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("(NOT %s)", inner.Clause),
		Params: inner.Params,
	}, nil
}

func (tr translator) translateComparison(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := extractFieldName(args[0])
	if err != nil {
		return SQLCondition{}, err
	}

	column, ok := tr.columns[field]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field: %s", field)
	}

	value, err := extractValue(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", column, op),
		Params: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		// timestamp("...") calls become the integer millis the store keeps.
		if kind.CallExpr.Function == "timestamp" && len(kind.CallExpr.Args) == 1 {
			return extractTimestampMillis(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func extractTimestampMillis(e *expr.Expr) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("nil timestamp argument")
	}

	kind, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a constant string")
	}
	strVal, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a string")
	}

	t, err := time.Parse(time.RFC3339, strVal.StringValue)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, strVal.StringValue)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp format: %s", strVal.StringValue)
		}
	}
	return t.UTC().UnixMilli(), nil
}
