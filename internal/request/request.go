// Package request builds generation requests from raw form state.
// It owns the two pipeline request variants and the background-source
// resolution rule shared by both.
package request

// Pipeline identifies one of the two generation workflows.
type Pipeline string

const (
	// PipelineStory generates a video from a free-text prompt.
	PipelineStory Pipeline = "story"
	// PipelineCommunity generates a video from a subreddit's top post.
	PipelineCommunity Pipeline = "community"
)

// IsValid returns true if the pipeline is known.
func (p Pipeline) IsValid() bool {
	return p == PipelineStory || p == PipelineCommunity
}

// BackgroundKind tags the variant held by a BackgroundSource.
type BackgroundKind string

const (
	// BackgroundNone means the generator picks its default background.
	BackgroundNone BackgroundKind = "none"
	// BackgroundRemoteVideo means a remote video URL is composited behind the artifact.
	BackgroundRemoteVideo BackgroundKind = "remote_video"
	// BackgroundUploadedImage means an uploaded image is sent alongside the request.
	BackgroundUploadedImage BackgroundKind = "uploaded_image"
)

// Upload is a file selected by the user.
type Upload struct {
	// Data is the raw file content.
	Data []byte
	// Filename is the name presented to the generator.
	Filename string
	// MIMEType is the content type sent with the file part.
	MIMEType string
}

// clone returns a deep copy so callers cannot mutate shared bytes.
func (u *Upload) clone() *Upload {
	if u == nil {
		return nil
	}
	data := make([]byte, len(u.Data))
	copy(data, u.Data)
	return &Upload{Data: data, Filename: u.Filename, MIMEType: u.MIMEType}
}

// BackgroundSource holds exactly one of: nothing, a remote video URL, or an uploaded image.
// Use NoBackground, RemoteVideo or Image to construct one.
type BackgroundSource struct {
	kind  BackgroundKind
	url   string
	image *Upload
}

// NoBackground returns the None variant.
func NoBackground() BackgroundSource {
	return BackgroundSource{kind: BackgroundNone}
}

// RemoteVideo returns the RemoteVideoUrl variant.
func RemoteVideo(url string) BackgroundSource {
	return BackgroundSource{kind: BackgroundRemoteVideo, url: url}
}

// Image returns the UploadedImage variant holding a copy of u.
func Image(u Upload) BackgroundSource {
	return BackgroundSource{kind: BackgroundUploadedImage, image: u.clone()}
}

// Kind reports which variant is held. The zero value reports BackgroundNone.
func (b BackgroundSource) Kind() BackgroundKind {
	if b.kind == "" {
		return BackgroundNone
	}
	return b.kind
}

// URL returns the remote video URL, or "" for other variants.
func (b BackgroundSource) URL() string {
	return b.url
}

// Upload returns a copy of the uploaded image, or nil for other variants.
func (b BackgroundSource) Upload() *Upload {
	return b.image.clone()
}

// GenerationRequest is a fully validated submission for one pipeline.
// Implemented only by StoryRequest and CommunityRequest.
type GenerationRequest interface {
	Pipeline() Pipeline
	Narration() bool
	BackgroundSource() BackgroundSource
	isGenerationRequest()
}

// StoryRequest asks the generator for a video built from a prompt.
type StoryRequest struct {
	Prompt            string
	GenerateNarration bool
	Background        BackgroundSource
}

// Pipeline implements GenerationRequest.
func (StoryRequest) Pipeline() Pipeline { return PipelineStory }

// Narration implements GenerationRequest.
func (r StoryRequest) Narration() bool { return r.GenerateNarration }

// BackgroundSource implements GenerationRequest.
func (r StoryRequest) BackgroundSource() BackgroundSource { return r.Background }

func (StoryRequest) isGenerationRequest() {}

// CommunityRequest asks the generator for a video built from a subreddit post.
type CommunityRequest struct {
	Community         string
	GenerateNarration bool
	Background        BackgroundSource
}

// Pipeline implements GenerationRequest.
func (CommunityRequest) Pipeline() Pipeline { return PipelineCommunity }

// Narration implements GenerationRequest.
func (r CommunityRequest) Narration() bool { return r.GenerateNarration }

// BackgroundSource implements GenerationRequest.
func (r CommunityRequest) BackgroundSource() BackgroundSource { return r.Background }

func (CommunityRequest) isGenerationRequest() {}

var (
	_ GenerationRequest = StoryRequest{}
	_ GenerationRequest = CommunityRequest{}
)
