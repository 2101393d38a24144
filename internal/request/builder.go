package request

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validation messages surfaced to the user.
const (
	MsgMissingPrompt    = "missing prompt"
	MsgMissingCommunity = "missing community name"
)

// ValidationError is returned when a required form field is missing.
// It is raised before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StoryForm is the raw input of the story pipeline.
type StoryForm struct {
	Prompt            string
	YouTubeURL        string
	Image             *Upload
	GenerateNarration bool
}

// ClearBackground empties the background URL and selected file.
// Prompt text and the narration flag are kept.
func (f *StoryForm) ClearBackground() {
	f.YouTubeURL = ""
	f.Image = nil
}

// Clone returns a deep copy of the form.
func (f StoryForm) Clone() StoryForm {
	f.Image = f.Image.clone()
	return f
}

// CommunityForm is the raw input of the community pipeline.
type CommunityForm struct {
	Community         string
	YouTubeURL        string
	Image             *Upload
	GenerateNarration bool
}

// ClearBackground empties the background URL and selected file.
// Community text and the narration flag are kept.
func (f *CommunityForm) ClearBackground() {
	f.YouTubeURL = ""
	f.Image = nil
}

// Clone returns a deep copy of the form.
func (f CommunityForm) Clone() CommunityForm {
	f.Image = f.Image.clone()
	return f
}

// requiredText is checked after trimming so whitespace-only input fails.
type requiredText struct {
	Value string `validate:"required"`
}

var validate = validator.New()

// checkRequired runs the required rule over the trimmed value.
func checkRequired(field, value, msg string) error {
	err := validate.Struct(requiredText{Value: strings.TrimSpace(value)})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &ValidationError{Field: field, Message: msg}
	}
	return fmt.Errorf("request: validate %s: %w", field, err)
}

// ResolveBackground picks the background for a submission.
// A trimmed, non-empty URL wins; otherwise a selected file is used; otherwise None.
// Supplying both is not an error: the image is dropped.
func ResolveBackground(url string, image *Upload) BackgroundSource {
	if u := strings.TrimSpace(url); u != "" {
		return RemoteVideo(u)
	}
	if image != nil {
		return Image(*image)
	}
	return NoBackground()
}

// BuildStory assembles a StoryRequest from the story form.
// The prompt is passed on as typed; only the emptiness check trims it.
func BuildStory(f StoryForm) (StoryRequest, error) {
	if err := checkRequired("prompt", f.Prompt, MsgMissingPrompt); err != nil {
		return StoryRequest{}, err
	}
	return StoryRequest{
		Prompt:            f.Prompt,
		GenerateNarration: f.GenerateNarration,
		Background:        ResolveBackground(f.YouTubeURL, f.Image),
	}, nil
}

// BuildCommunity assembles a CommunityRequest from the community form.
func BuildCommunity(f CommunityForm) (CommunityRequest, error) {
	if err := checkRequired("subreddit", f.Community, MsgMissingCommunity); err != nil {
		return CommunityRequest{}, err
	}
	return CommunityRequest{
		Community:         f.Community,
		GenerateNarration: f.GenerateNarration,
		Background:        ResolveBackground(f.YouTubeURL, f.Image),
	}, nil
}
