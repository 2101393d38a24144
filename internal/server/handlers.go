package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Da-Coder-Jr/Vidiment/internal/lifecycle"
	"github.com/Da-Coder-Jr/Vidiment/internal/media"
	"github.com/Da-Coder-Jr/Vidiment/internal/present"
	"github.com/Da-Coder-Jr/Vidiment/internal/request"
)

// ImageField is the multipart field carrying a background image upload.
const ImageField = "background_image"

// maxUploadBody caps an image upload request: the image plus room for
// multipart headers. Larger bodies are refused before anything is buffered.
const maxUploadBody = media.MaxImageSize + 1<<20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	controller *lifecycle.Controller
	presenter  *present.Presenter
	validator  *validator.Validate
	logger     *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(controller *lifecycle.Controller, presenter *present.Presenter, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		controller: controller,
		presenter:  presenter,
		validator:  validator.New(),
		logger:     logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GetForm handles GET /forms/{pipeline} requests.
func (h *Handlers) GetForm(w http.ResponseWriter, r *http.Request) {
	p, ok := pipelineParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.formResponse(p))
}

// UpdateForm handles PUT /forms/{pipeline} requests.
// Text fields and the narration toggle are replaced; the uploaded image, if any, is kept.
func (h *Handlers) UpdateForm(w http.ResponseWriter, r *http.Request) {
	p, ok := pipelineParam(w, r)
	if !ok {
		return
	}
	if p == request.PipelineCommunity {
		h.updateCommunityForm(w, r)
		return
	}
	h.updateStoryForm(w, r)
}

func (h *Handlers) updateStoryForm(w http.ResponseWriter, r *http.Request) {
	var req StoryFormRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.controller.UpdateStoryForm(func(f *request.StoryForm) {
		f.Prompt = req.Prompt
		f.YouTubeURL = req.YouTubeURL
		f.GenerateNarration = req.GenerateNarration
	})
	if err != nil {
		h.writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.formResponse(request.PipelineStory))
}

func (h *Handlers) updateCommunityForm(w http.ResponseWriter, r *http.Request) {
	var req CommunityFormRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.controller.UpdateCommunityForm(func(f *request.CommunityForm) {
		f.Community = req.Subreddit
		f.YouTubeURL = req.YouTubeURL
		f.GenerateNarration = req.GenerateNarration
	})
	if err != nil {
		h.writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.formResponse(request.PipelineCommunity))
}

// PutImage handles PUT /forms/{pipeline}/image requests.
func (h *Handlers) PutImage(w http.ResponseWriter, r *http.Request) {
	p, ok := pipelineParam(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large", "IMAGE_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body", "INVALID_MULTIPART")
		return
	}
	file, header, err := r.FormFile(ImageField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing "+ImageField+" file", "MISSING_IMAGE")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, media.MaxImageSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload", "INVALID_IMAGE")
		return
	}
	upload, err := media.NewUpload(header.Filename, data)
	if errors.Is(err, media.ErrImageTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error(), "IMAGE_TOO_LARGE")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_IMAGE")
		return
	}

	if err := h.setImage(p, upload); err != nil {
		h.writeControllerError(w, err)
		return
	}

	h.logger.Info("background image set",
		slog.String("pipeline", string(p)),
		slog.String("filename", upload.Filename),
		slog.String("mime_type", upload.MIMEType),
		slog.Int("size", len(upload.Data)),
	)
	writeJSON(w, http.StatusOK, h.formResponse(p))
}

// DeleteImage handles DELETE /forms/{pipeline}/image requests.
func (h *Handlers) DeleteImage(w http.ResponseWriter, r *http.Request) {
	p, ok := pipelineParam(w, r)
	if !ok {
		return
	}
	if err := h.setImage(p, nil); err != nil {
		h.writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.formResponse(p))
}

// Submit handles POST /forms/{pipeline}/submit requests.
// The submission continues after the response is written.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := pipelineParam(w, r)
	if !ok {
		return
	}

	ticket, err := h.controller.Submit(r.Context(), p)
	if err != nil {
		h.writeControllerError(w, err)
		return
	}

	h.logger.Info("submission accepted",
		slog.String("pipeline", string(p)),
		slog.Uint64("seq", ticket.Seq),
	)
	writeJSON(w, http.StatusAccepted, h.stateResponse())
}

// GetState handles GET /state requests.
func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// DismissState handles DELETE /state requests.
func (h *Handlers) DismissState(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Dismiss(); err != nil {
		h.writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

func (h *Handlers) setImage(p request.Pipeline, upload *request.Upload) error {
	if p == request.PipelineCommunity {
		return h.controller.UpdateCommunityForm(func(f *request.CommunityForm) {
			f.Image = upload
		})
	}
	return h.controller.UpdateStoryForm(func(f *request.StoryForm) {
		f.Image = upload
	})
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_FIELDS")
		return false
	}
	return true
}

func (h *Handlers) writeControllerError(w http.ResponseWriter, err error) {
	var vErr *request.ValidationError
	switch {
	case errors.Is(err, lifecycle.ErrBusy):
		writeError(w, http.StatusConflict, "a video is already being generated", "BUSY")
	case errors.As(err, &vErr):
		writeError(w, http.StatusUnprocessableEntity, vErr.Message, "VALIDATION_ERROR")
	default:
		h.logger.Error("controller error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

func (h *Handlers) formResponse(p request.Pipeline) FormResponse {
	resp := FormResponse{Pipeline: string(p)}
	var image *request.Upload
	if p == request.PipelineCommunity {
		f := h.controller.CommunityForm()
		resp.Subreddit = f.Community
		resp.YouTubeURL = f.YouTubeURL
		resp.GenerateNarration = f.GenerateNarration
		image = f.Image
	} else {
		f := h.controller.StoryForm()
		resp.Prompt = f.Prompt
		resp.YouTubeURL = f.YouTubeURL
		resp.GenerateNarration = f.GenerateNarration
		image = f.Image
	}
	if image != nil {
		resp.Image = &ImageInfo{
			Filename: image.Filename,
			MIMEType: image.MIMEType,
			Size:     len(image.Data),
		}
	}
	return resp
}

func (h *Handlers) stateResponse() StateResponse {
	s := h.controller.State()
	return StateResponse{
		Display:  h.presenter.Present(s),
		Seq:      s.Seq,
		Pipeline: string(s.Pipeline),
		Failure:  string(s.Failure),
		Title:    s.Title,
	}
}

// pipelineParam reads and checks the {pipeline} URL parameter.
func pipelineParam(w http.ResponseWriter, r *http.Request) (request.Pipeline, bool) {
	p := request.Pipeline(chi.URLParam(r, "pipeline"))
	if !p.IsValid() {
		writeError(w, http.StatusNotFound, "unknown pipeline", "UNKNOWN_PIPELINE")
		return "", false
	}
	return p, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
