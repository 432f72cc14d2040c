// Package server provides the HTTP front-end for spectrogram uploads.
// It includes handlers, the page template, middleware and routes.
package server

// PageData is rendered into the upload page.
type PageData struct {
	// ImageURL is the spectrogram to show. Empty means no image.
	ImageURL string
	// Message is a one-line failure description. Empty means none.
	Message string
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
