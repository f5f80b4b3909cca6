package handler

import (
	"encoding/json"
	"net/http"
)

// StatusEnvelope is the body of every API response.
type StatusEnvelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, StatusEnvelope{Status: status, Message: msg})
}
