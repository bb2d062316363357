// Package server provides the HTTP server for the audiocut API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// TrimRequest holds the text fields of a trim upload. Empty fields are
// replaced by the configured defaults before validation.
type TrimRequest struct {
	// Start is the offset as [[HH:]MM:]SS.
	Start string `form:"start" validate:"timespec"`
	// Duration is the excerpt length as [[HH:]MM:]SS.
	Duration string `form:"duration" validate:"timespec"`
	// PushToS3 asks for the result to be uploaded instead of returned.
	PushToS3 string `form:"push_to_s3" validate:"omitempty,boolean"`
}

// ChunkRequest holds the text fields of a chunk upload.
type ChunkRequest struct {
	// Start is the offset of the first chunk as [[HH:]MM:]SS.
	Start string `form:"start" validate:"timespec"`
	// ChunkDuration is the length of every chunk as [[HH:]MM:]SS.
	ChunkDuration string `form:"chunkDuration" validate:"timespec"`
	// PushToS3 asks for the archive to be uploaded instead of returned.
	PushToS3 string `form:"push_to_s3" validate:"omitempty,boolean"`
}

// TrimUploadResponse is returned when a trimmed excerpt was pushed to S3.
type TrimUploadResponse struct {
	// URL is the location of the uploaded excerpt.
	URL string `json:"url"`
}

// ChunkUploadResponse is returned when a chunk archive was pushed to S3.
type ChunkUploadResponse struct {
	// URL is the location of the uploaded archive.
	URL string `json:"url"`
	// Chunks is the number of entries in the archive.
	Chunks int `json:"chunks"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is a short label for the failure.
	Error string `json:"error"`
	// Message carries the underlying detail, e.g. ffmpeg's stderr.
	Message string `json:"message"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
