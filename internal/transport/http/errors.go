package httptransport

import (
	"net/http"

	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
)

func writeNotFound(w http.ResponseWriter) {
	httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error":             "method_not_allowed",
		"error_description": "method not allowed on this route",
	})
}
