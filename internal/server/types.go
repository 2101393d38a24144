// Package server provides the local HTTP surface for the video generator.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "github.com/Da-Coder-Jr/Vidiment/internal/present"

// StoryFormRequest is the HTTP request body for updating the story form.
type StoryFormRequest struct {
	// Prompt is the story prompt, sent as typed.
	Prompt string `json:"prompt" validate:"max=20000"`
	// YouTubeURL is the optional background video URL.
	YouTubeURL string `json:"youtube_url" validate:"max=2048"`
	// GenerateNarration asks the service to narrate the video.
	GenerateNarration bool `json:"generate_narration"`
}

// CommunityFormRequest is the HTTP request body for updating the community form.
type CommunityFormRequest struct {
	// Subreddit is the community name.
	Subreddit string `json:"subreddit" validate:"max=100"`
	// YouTubeURL is the optional background video URL.
	YouTubeURL string `json:"youtube_url" validate:"max=2048"`
	// GenerateNarration asks the service to narrate the video.
	GenerateNarration bool `json:"generate_narration"`
}

// ImageInfo describes the image held in a form's background slot.
type ImageInfo struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
}

// FormResponse is the HTTP response describing one pipeline's form.
type FormResponse struct {
	// Pipeline is "story" or "community".
	Pipeline string `json:"pipeline"`
	// Prompt is set for the story pipeline.
	Prompt string `json:"prompt,omitempty"`
	// Subreddit is set for the community pipeline.
	Subreddit string `json:"subreddit,omitempty"`
	// YouTubeURL is the background video URL, if any.
	YouTubeURL string `json:"youtube_url,omitempty"`
	// GenerateNarration mirrors the narration toggle.
	GenerateNarration bool `json:"generate_narration"`
	// Image is present when an image has been uploaded.
	Image *ImageInfo `json:"image,omitempty"`
}

// StateResponse is the HTTP response for the lifecycle state.
type StateResponse struct {
	present.Display
	// Seq is the sequence number of the submission the state belongs to.
	Seq uint64 `json:"seq"`
	// Pipeline is the pipeline of the latest attempt.
	Pipeline string `json:"pipeline,omitempty"`
	// Failure classifies the error of a failed state.
	Failure string `json:"failure,omitempty"`
	// Title is the source post title of a community result.
	Title string `json:"title,omitempty"`
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
