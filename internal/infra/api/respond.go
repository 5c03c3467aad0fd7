package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"matrimony-subscription/internal/usecase"
)

type errorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeRequestError renders decode/validation failures; anything else is a 400.
func writeRequestError(w http.ResponseWriter, err error) {
	var re *requestError
	if errors.As(err, &re) {
		writeJSON(w, re.status, errorBody{Error: re.msg, Details: re.details})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// statusFor maps a refusal reason onto an HTTP status.
func statusFor(r usecase.Reason) int {
	switch {
	case r == usecase.ReasonNone:
		return http.StatusOK
	case r.IsEntitlement():
		return http.StatusPaymentRequired
	case r.IsQuota():
		return http.StatusTooManyRequests
	case r.Retryable():
		return http.StatusServiceUnavailable
	}
	switch r {
	case usecase.ReasonInvalidArgument, usecase.ReasonUnknownPackage, usecase.ReasonInvalidSignature:
		return http.StatusBadRequest
	case usecase.ReasonSubscriptionNotFound:
		return http.StatusNotFound
	case usecase.ReasonPaymentAlreadyUsed:
		return http.StatusConflict
	}
	// invalid package: the catalog and the stored subscription disagree
	return http.StatusInternalServerError
}

// writeResult renders a management result. Replayed payments answer 200 like the first call.
func writeResult(w http.ResponseWriter, res usecase.Result) {
	if res.Success {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, statusFor(res.Reason), res)
}
