package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/logging"
	"github.com/gin-org/sitebackend/internal/server/policy"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// statusFor maps a service error to its HTTP status and error body.
func statusFor(err error) (int, errorBody) {
	var (
		ve *common.ValidationError
		ae *common.AuthorizationError
		te *common.TransitionError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Code: "validation_error", Message: "invalid input", Fields: ve.Fields}
	case errors.As(err, &ae):
		return http.StatusForbidden, errorBody{Code: policy.DenialCode, Message: ae.Reason}
	case errors.Is(err, common.ErrAuthorizationDenied):
		return http.StatusForbidden, errorBody{Code: policy.DenialCode, Message: policy.DenyReason}
	case errors.As(err, &te):
		return http.StatusConflict, errorBody{Code: "invalid_transition", Message: te.Error()}
	case errors.Is(err, common.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorBody{Code: "store_unavailable", Message: "service temporarily unavailable"}
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: "not found"}
	case errors.Is(err, common.ErrLastAdministrator):
		return http.StatusConflict, errorBody{Code: "last_administrator", Message: err.Error()}
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, errorBody{Code: "already_exists", Message: "already exists"}
	case errors.Is(err, common.ErrRefreshTokenUsed),
		errors.Is(err, common.ErrRefreshTokenExpired),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, errorBody{Code: "token_not_valid", Message: err.Error()}
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: "invalid credentials"}
	}
	return http.StatusInternalServerError, errorBody{Code: "internal_error", Message: "internal error"}
}

func writeError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON request body into dst. A malformed body is a
// validation error on the "body" field.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return common.NewValidationError("body", "request body is empty")
		}
		return common.NewValidationError("body", "malformed JSON")
	}
	return nil
}
