// Package generator provides an HTTP client for the video generation service.
// It serializes story and community requests as multipart submissions and maps
// responses to a Result, a RejectedError or a TransportError.
package generator

import (
	"fmt"

	"github.com/Da-Coder-Jr/Vidiment/internal/request"
)

// Endpoint paths and multipart field names understood by the generation service.
const (
	storyPath     = "/generate_story_video"
	communityPath = "/generate_reddit_video"

	storyField      = "story_prompt_json"
	communityField  = "reddit_prompt_json"
	backgroundField = "background_image"
)

// Result is a successful generation outcome.
type Result struct {
	// Pipeline is the pipeline that produced the artifact.
	Pipeline request.Pipeline
	// ArtifactPath is the server-side path of the generated video.
	ArtifactPath string
	// Text is the generated story, or the community video script (falling back to the title).
	Text string
	// Title is the original post title (community pipeline only).
	Title string
}

// RejectedError is returned when the service answers with a non-2xx status.
type RejectedError struct {
	StatusCode int
	// Detail is the server-supplied message, or a generic status message.
	Detail string
}

func (e *RejectedError) Error() string {
	return e.Detail
}

// TransportError is returned when no usable response was obtained:
// network failures, unreadable bodies and malformed success payloads.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// storyPrompt is the JSON part of a story submission.
type storyPrompt struct {
	Prompt            string `json:"prompt"`
	GenerateNarration bool   `json:"generate_narration"`
	YouTubeURL        string `json:"youtube_url,omitempty"`
}

// communityPrompt is the JSON part of a community submission.
type communityPrompt struct {
	Subreddit         string `json:"subreddit"`
	GenerateNarration bool   `json:"generate_narration"`
	YouTubeURL        string `json:"youtube_url,omitempty"`
}

// storyResponse is the success body of the story endpoint.
type storyResponse struct {
	VideoPath string `json:"video_path"`
	Story     string `json:"story"`
}

// communityResponse is the success body of the community endpoint.
type communityResponse struct {
	VideoPath     string `json:"video_path"`
	OriginalTitle string `json:"original_title"`
	VideoScript   string `json:"video_script"`
}

// errorResponse is the failure body. Detail is usually a string but
// request validation failures carry a list, so it is decoded lazily.
type errorResponse struct {
	Detail any `json:"detail"`
}
