package models

import "time"

// ErrorResponse is the standard error body
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the standard confirmation body
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse reports service health
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}
