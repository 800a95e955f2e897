package rest

import (
	"encoding/json"
	"log"
	"net/http"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/platform/requestctx"
)

// errorBody is the JSON error envelope: {"error": {code, message, metadata}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response for %s %s: %v", r.Method, r.URL.Path, err)
	}
}

// writeError renders an error through the code-to-status mapping and the
// localized message catalog.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	locale := requestctx.LocaleFromContext(r.Context())
	code := apperrors.GetCode(err)
	if code == apperrors.CodeUnknown {
		log.Printf("internal error on %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, r, code.HTTPStatus(), errorBody{Error: errorDetail{
		Code:     string(code),
		Message:  apperrors.LocalizedMessage(err, locale),
		Metadata: apperrors.GetMetadata(err),
	}})
}

// decodeJSON reads a request body into dst. A missing body decodes to the
// zero value so optional-body routes share the helper.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "request body is not valid JSON", err)
	}
	return nil
}
