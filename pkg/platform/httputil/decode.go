package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/requestcontext"
)

// MaxBodyBytes caps request bodies read by Decode.
const MaxBodyBytes = 64 << 10

// Sanitizer is implemented by request bodies that normalize themselves
// (trimming, case folding) before validation.
type Sanitizer interface {
	Sanitize()
}

// Validator is implemented by request bodies that check themselves.
type Validator interface {
	Validate() error
}

// Decode reads one JSON object into a new T, then runs Sanitize and Validate
// when T implements them. Unknown fields, trailing data and oversized bodies
// are bad_request. A Validate error keeps its domain code; any other error
// becomes validation_failed.
//
// On failure the error response is already written and ok is false.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	ctx := r.Context()
	req := new(T)
	if err := decodeBody(w, r, req); err != nil {
		logger.WarnContext(ctx, "rejected request body",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		WriteError(w, err)
		return nil, false
	}

	if s, ok := any(req).(Sanitizer); ok {
		s.Sanitize()
	}
	if v, ok := any(req).(Validator); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "request failed validation",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			var domainErr *dErrors.Error
			if !errors.As(err, &domainErr) {
				err = dErrors.New(dErrors.CodeValidation, err.Error())
			}
			WriteError(w, err)
			return nil, false
		}
	}
	return req, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
	case errors.As(err, &tooLarge):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "request body too large")
	case errors.Is(err, io.EOF):
		return dErrors.New(dErrors.CodeBadRequest, "request body is empty")
	default:
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}

	if dec.More() {
		return dErrors.New(dErrors.CodeBadRequest, "request body must hold a single JSON object")
	}
	return nil
}
