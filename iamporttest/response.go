package iamporttest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

type envelope struct {
	Code     int     `json:"code"`
	Message  *string `json:"message"`
	Response any     `json:"response"`
}

func writeResponse(w http.ResponseWriter, response any) {
	writeJSON(w, http.StatusOK, envelope{Response: response})
}

func writeError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, envelope{Code: code, Message: &message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func intQuery(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return fallback
	}

	return n
}

func maskCardNumber(pan string) string {
	if len(pan) < 10 {
		return pan
	}

	return pan[:6] + strings.Repeat("*", len(pan)-10) + pan[len(pan)-4:]
}
