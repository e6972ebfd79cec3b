package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/edison-dev/edison/internal/entity"
	"github.com/edison-dev/edison/internal/filelock"
	"github.com/edison-dev/edison/internal/pathid"
	"github.com/edison-dev/edison/internal/session"
	"github.com/edison-dev/edison/internal/statemachine"
	"github.com/edison-dev/edison/internal/vendor"
)

// envelope is the flat JSON shape every command emits in --json mode: either
// {"success":true,...command fields...} or {"success":false,"error":{...}}.
type envelope struct {
	Success bool          `json:"success"`
	Error   *errorPayload `json:"error,omitempty"`
	Data    any           `json:"-"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Context any    `json:"context,omitempty"`
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// emitResult prints data either as JSON ({"success":true,...fields}) or via
// the supplied text renderer, depending on the --json flag.
func emitResult(data any, text func()) {
	if jsonOutput {
		writeSuccessJSON(data)
		return
	}
	text()
}

// writeSuccessJSON flattens data's fields alongside "success":true, since
// spec §6 requires JSON payloads be flat per command rather than nested
// under a "data" key.
func writeSuccessJSON(data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		writeJSON(os.Stdout, envelope{Success: false, Error: &errorPayload{Code: "INTERNAL_ERROR", Message: err.Error()}})
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		writeJSON(os.Stdout, envelope{Success: false, Error: &errorPayload{Code: "INTERNAL_ERROR", Message: err.Error()}})
		return
	}
	fields["success"] = true
	writeJSON(os.Stdout, fields)
}

// classify maps a domain error to one of spec §6's stable error-code
// strings. Unrecognized errors fall back to INTERNAL_ERROR.
func classify(err error) string {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return "QA_NOT_FOUND"
	case errors.Is(err, session.ErrNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, pathid.ErrProjectRootNotFound):
		return "FILE_NOT_FOUND"
	case errors.Is(err, pathid.ErrIDNotFound):
		return "FILE_NOT_FOUND"
	case errors.Is(err, pathid.ErrInvalidID):
		return "INVALID_JSON"
	case errors.Is(err, filelock.ErrTimeout):
		return "LOCK_TIMEOUT"
	case errors.Is(err, os.ErrNotExist):
		return "FILE_NOT_FOUND"
	}

	var ambiguous *pathid.AmbiguousIDError
	if errors.As(err, &ambiguous) {
		return "AMBIGUOUS_ID"
	}
	var invalidTransition *statemachine.InvalidTransitionError
	if errors.As(err, &invalidTransition) {
		return "INVALID_TRANSITION"
	}
	var guardDenied *statemachine.GuardDeniedError
	if errors.As(err, &guardDenied) {
		return "GUARD_DENIED"
	}
	var conditionFailed *statemachine.ConditionFailedError
	if errors.As(err, &conditionFailed) {
		return "CONDITION_FAILED"
	}
	var pathEscapes *vendor.PathEscapesRootError
	if errors.As(err, &pathEscapes) {
		return "VENDOR_PATH_ESCAPES_ROOT"
	}
	var credential *vendor.CredentialInURLError
	if errors.As(err, &credential) {
		return "VENDOR_CREDENTIAL_IN_URL"
	}
	var optionInjection *vendor.OptionInjectionError
	if errors.As(err, &optionInjection) {
		return "VENDOR_OPTION_INJECTION"
	}
	var cacheDir *vendor.CacheDirNotAllowedError
	if errors.As(err, &cacheDir) {
		return "VENDOR_CACHE_DIR_NOT_ALLOWED"
	}
	var symlinkEscape *vendor.SymlinkEscapeError
	if errors.As(err, &symlinkEscape) {
		return "VENDOR_SYMLINK_ESCAPE"
	}

	return "INTERNAL_ERROR"
}
