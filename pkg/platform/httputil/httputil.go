// Package httputil renders JSON responses and maps domain error codes onto
// HTTP statuses and the {"error","error_description"} body.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/requestcontext"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeNotFound:              http.StatusNotFound,
	dErrors.CodeBadRequest:            http.StatusBadRequest,
	dErrors.CodeInvalidInput:          http.StatusBadRequest,
	dErrors.CodeValidation:            http.StatusBadRequest,
	dErrors.CodeMalformedReference:    http.StatusBadRequest,
	dErrors.CodeUnauthorized:          http.StatusUnauthorized,
	dErrors.CodeForbidden:             http.StatusForbidden,
	dErrors.CodeConflict:              http.StatusConflict,
	dErrors.CodeDuplicateFingerprint:  http.StatusConflict,
	dErrors.CodeAlreadyAnchored:       http.StatusConflict,
	dErrors.CodeAnchorInProgress:      http.StatusConflict,
	dErrors.CodeCannotDeleteAnchored:  http.StatusConflict,
	dErrors.CodeInsufficientFunds:     http.StatusUnprocessableEntity,
	dErrors.CodeTransactionReverted:   http.StatusUnprocessableEntity,
	dErrors.CodeLedgerUnavailable:     http.StatusServiceUnavailable,
	dErrors.CodeContractNotConfigured: http.StatusServiceUnavailable,
	dErrors.CodeSignerNotConfigured:   http.StatusServiceUnavailable,
	dErrors.CodeTimeout:               http.StatusGatewayTimeout,
}

// Codes whose message may leak driver or query detail.
var hiddenDetail = map[dErrors.Code]bool{
	dErrors.CodeInternal:    true,
	dErrors.CodePersistence: true,
}

// StatusOf returns the HTTP status for code. Unknown codes are 500.
func StatusOf(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// wireCode is the value of the "error" field.
func wireCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation:
		return "validation_error"
	case "":
		return string(dErrors.CodeInternal)
	}
	return string(code)
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status is already sent; an encode failure has nowhere to go.
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError answers with the status and body for err. Errors that carry no
// domain code are reported as internal_error without a description.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": wireCode(dErrors.CodeInternal)})
		return
	}
	body := map[string]string{"error": wireCode(de.Code)}
	if de.Message != "" && !hiddenDetail[de.Code] {
		body["error_description"] = de.Message
	}
	WriteJSON(w, StatusOf(de.Code), body)
}

// RequireCaller returns the caller placed in ctx by the auth middleware. A
// missing caller means the route was mounted outside that middleware.
func RequireCaller(ctx context.Context, logger *slog.Logger) (requestcontext.Caller, error) {
	caller := requestcontext.CallerFrom(ctx)
	if !caller.IsZero() {
		return caller, nil
	}
	if logger != nil {
		logger.ErrorContext(ctx, "caller missing from context behind auth middleware",
			"request_id", requestcontext.RequestID(ctx))
	}
	return requestcontext.Caller{}, dErrors.New(dErrors.CodeInternal, "authentication context error")
}
