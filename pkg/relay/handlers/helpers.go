package handlers

import (
	"net/http"

	"github.com/vango-go/talkrelay/pkg/core"
	"github.com/vango-go/talkrelay/pkg/relay/mw"
)

// writeError stamps the request ID onto the envelope before writing it.
func writeError(w http.ResponseWriter, r *http.Request, status int, coreErr *core.Error) {
	if coreErr != nil && coreErr.RequestID == "" {
		coreErr.RequestID, _ = mw.RequestIDFrom(r.Context())
	}
	mw.WriteJSONError(w, status, coreErr)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, &core.Error{
		Type:    core.ErrInvalidRequest,
		Message: "method not allowed",
		Code:    "method_not_allowed",
	})
}
