package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/solar-bridge/internal/accessory"
	"github.com/nerrad567/solar-bridge/internal/pairing"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeForbidden    = "forbidden"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeReadOnly     = "read_only"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeInvalidSetup = "invalid_setup_code"
)

// domainErrors maps accessory and pairing sentinels to responses. The
// first match wins.
var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{accessory.ErrUnknownCharacteristic, http.StatusNotFound, ErrCodeNotFound},
	{accessory.ErrReadOnly, http.StatusForbidden, ErrCodeReadOnly},
	{accessory.ErrInvalidValue, http.StatusBadRequest, ErrCodeValidation},
	{accessory.ErrNoWriteHandler, http.StatusServiceUnavailable, ErrCodeUnavailable},
	{pairing.ErrSetupCodeMismatch, http.StatusForbidden, ErrCodeForbidden},
	{pairing.ErrInvalidSetupCode, http.StatusBadRequest, ErrCodeInvalidSetup},
	{pairing.ErrInvalidPairing, http.StatusBadRequest, ErrCodeValidation},
	{pairing.ErrPairingNotFound, http.StatusNotFound, ErrCodeNotFound},
	{pairing.ErrNotAdmin, http.StatusForbidden, ErrCodeForbidden},
	{pairing.ErrTokenInvalid, http.StatusUnauthorized, ErrCodeUnauthorized},
	{pairing.ErrTokenRevoked, http.StatusUnauthorized, ErrCodeUnauthorized},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck // client may be gone
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError answers with the mapping from domainErrors. Anything
// else is a 500 without detail; the caller logs it.
func writeDomainError(w http.ResponseWriter, err error) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	writeInternalError(w, "internal server error")
}
