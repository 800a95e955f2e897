package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	a := New(CodeLedgerInsufficientFunds, "balance too low")
	b := New(CodeLedgerInsufficientFunds, "different message")
	if !errors.Is(a, b) {
		t.Fatal("expected errors with equal codes to match")
	}
	if errors.Is(a, New(CodeEscrowExhausted, "x")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("driver: disk I/O error")
	err := Wrap(CodeConflict, "apply entry", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be unwrappable")
	}
	if GetCode(err) != CodeConflict {
		t.Fatalf("GetCode = %v, want %v", GetCode(err), CodeConflict)
	}
}

func TestGetCodeUnknownForForeignErrors(t *testing.T) {
	if got := GetCode(fmt.Errorf("plain")); got != CodeUnknown {
		t.Fatalf("GetCode = %v, want %v", got, CodeUnknown)
	}
	if GetCode(nil) != CodeUnknown {
		t.Fatal("expected CodeUnknown for nil error")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	cases := map[Code]codes.Code{
		CodeAwardSelf:               codes.InvalidArgument,
		CodeLedgerInsufficientFunds: codes.FailedPrecondition,
		CodeEscrowExhausted:         codes.FailedPrecondition,
		CodeActivityNotFound:        codes.NotFound,
		CodeTeamAlreadyMember:       codes.AlreadyExists,
		CodeAwardDuplicate:          codes.AlreadyExists,
		CodeConflict:                codes.Aborted,
		CodeIntegrity:               codes.Internal,
		CodeUnknown:                 codes.Internal,
	}
	for code, want := range cases {
		if got := code.GRPCCode(); got != want {
			t.Fatalf("GRPCCode(%v) = %v, want %v", code, got, want)
		}
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidArgument:         http.StatusBadRequest,
		CodeLedgerInsufficientFunds: http.StatusUnprocessableEntity,
		CodeNotFound:                http.StatusNotFound,
		CodeAwardDuplicate:          http.StatusConflict,
		CodeConflict:                http.StatusConflict,
		CodeIntegrity:               http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Fatalf("HTTPStatus(%v) = %v, want %v", code, got, want)
		}
	}
}

func TestHandleErrorLocalizes(t *testing.T) {
	err := WithMetadata(CodeLedgerInsufficientFunds, "balance too low", map[string]string{
		"Balance":  "3",
		"Required": "10",
	})

	st, ok := status.FromError(HandleError(err, "en-US"))
	if !ok {
		t.Fatal("expected gRPC status")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("status code = %v, want %v", st.Code(), codes.FailedPrecondition)
	}
	if st.Message() != "balance too low" {
		t.Fatalf("status message = %q, want internal message", st.Message())
	}
}

func TestHandleErrorUnknown(t *testing.T) {
	st, ok := status.FromError(HandleError(fmt.Errorf("boom"), ""))
	if !ok {
		t.Fatal("expected gRPC status")
	}
	if st.Code() != codes.Internal {
		t.Fatalf("status code = %v, want %v", st.Code(), codes.Internal)
	}
}

func TestHandleErrorNil(t *testing.T) {
	if HandleError(nil, "en-US") != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestLocalizedMessage(t *testing.T) {
	err := WithMetadata(CodeTeamFull, "team full", map[string]string{"Limit": "3"})
	if got := LocalizedMessage(err, "en-US"); got != "The reviewer team is full (3 members)" {
		t.Fatalf("LocalizedMessage = %q", got)
	}
	if got := LocalizedMessage(fmt.Errorf("boom"), "en-US"); got != "An unexpected error occurred" {
		t.Fatalf("LocalizedMessage(foreign) = %q", got)
	}
}
