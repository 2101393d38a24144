package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Da-Coder-Jr/Vidiment/internal/generator"
	"github.com/Da-Coder-Jr/Vidiment/internal/lifecycle"
	"github.com/Da-Coder-Jr/Vidiment/internal/present"
	"github.com/Da-Coder-Jr/Vidiment/internal/request"
)

// mockClient implements generator.Client for testing.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) Submit(ctx context.Context, req request.GenerationRequest) (generator.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(generator.Result), args.Error(1)
}

// syncDispatcher runs submissions on the caller's goroutine.
type syncDispatcher struct{}

func (syncDispatcher) Submit(task func()) error {
	task()
	return nil
}

// heldDispatcher keeps submissions pending until release is called.
type heldDispatcher struct {
	mu    sync.Mutex
	tasks []func()
}

func (d *heldDispatcher) Submit(task func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	return nil
}

func (d *heldDispatcher) release() {
	d.mu.Lock()
	tasks := d.tasks
	d.tasks = nil
	d.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRouter(t *testing.T, d lifecycle.Dispatcher) (http.Handler, *mockClient, *lifecycle.Controller) {
	t.Helper()
	client := &mockClient{}
	controller := lifecycle.NewController(client, lifecycle.WithDispatcher(d), lifecycle.WithLogger(testLogger()))
	h := NewHandlers(controller, present.NewPresenter("http://localhost:8000/static/"), testLogger())
	return NewRouter(h, testLogger(), DefaultConfig()), client, controller
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func uploadImage(t *testing.T, router http.Handler, pipeline, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(ImageField, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/forms/"+pipeline+"/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) StateResponse {
	t.Helper()
	var resp StateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	router, _, _ := newTestRouter(t, syncDispatcher{})

	rec := doJSON(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestUpdateForm_Story(t *testing.T) {
	router, _, controller := newTestRouter(t, syncDispatcher{})

	rec := doJSON(t, router, http.MethodPut, "/forms/story", StoryFormRequest{
		Prompt:            "A dragon learns to code",
		GenerateNarration: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FormResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "story", resp.Pipeline)
	assert.Equal(t, "A dragon learns to code", resp.Prompt)
	assert.True(t, resp.GenerateNarration)
	assert.Nil(t, resp.Image)

	assert.Equal(t, "A dragon learns to code", controller.StoryForm().Prompt)
}

func TestUpdateForm_CommunityKeepsImage(t *testing.T) {
	router, _, controller := newTestRouter(t, syncDispatcher{})

	rec := uploadImage(t, router, "community", "bg.png", pngBytes)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/forms/community", CommunityFormRequest{
		Subreddit:  "AskReddit",
		YouTubeURL: "https://youtu.be/x",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FormResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "AskReddit", resp.Subreddit)
	require.NotNil(t, resp.Image)
	assert.Equal(t, "bg.png", resp.Image.Filename)
	assert.Equal(t, "image/png", resp.Image.MIMEType)
	assert.Equal(t, len(pngBytes), resp.Image.Size)

	f := controller.CommunityForm()
	assert.Equal(t, "https://youtu.be/x", f.YouTubeURL)
	require.NotNil(t, f.Image)
}

func TestUpdateForm_InvalidJSON(t *testing.T) {
	router, _, _ := newTestRouter(t, syncDispatcher{})

	req := httptest.NewRequest(http.MethodPut, "/forms/story", strings.NewReader("{invalid"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestUpdateForm_FieldTooLong(t *testing.T) {
	router, _, _ := newTestRouter(t, syncDispatcher{})

	rec := doJSON(t, router, http.MethodPut, "/forms/community", CommunityFormRequest{
		Subreddit: strings.Repeat("a", 101),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INVALID_FIELDS", resp.Code)
}

func TestUnknownPipeline(t *testing.T) {
	router, _, _ := newTestRouter(t, syncDispatcher{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/forms/podcast"},
		{http.MethodPut, "/forms/podcast"},
		{http.MethodDelete, "/forms/podcast/image"},
		{http.MethodPost, "/forms/podcast/submit"},
	} {
		rec := doJSON(t, router, tc.method, tc.path, StoryFormRequest{})
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestPutImage_Errors(t *testing.T) {
	router, _, _ := newTestRouter(t, syncDispatcher{})

	req := httptest.NewRequest(http.MethodPut, "/forms/story/image", strings.NewReader("not multipart"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = uploadImage(t, router, "story", "empty.png", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INVALID_IMAGE", resp.Code)
}

func TestDeleteImage(t *testing.T) {
	router, _, controller := newTestRouter(t, syncDispatcher{})

	require.Equal(t, http.StatusOK, uploadImage(t, router, "story", "bg.png", pngBytes).Code)
	require.NotNil(t, controller.StoryForm().Image)

	rec := doJSON(t, router, http.MethodDelete, "/forms/story/image", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, controller.StoryForm().Image)
}

func TestSubmit_Success(t *testing.T) {
	router, client, controller := newTestRouter(t, syncDispatcher{})

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPut, "/forms/story", StoryFormRequest{
		Prompt:            "A dragon learns to code",
		GenerateNarration: true,
	}).Code)
	require.Equal(t, http.StatusOK, uploadImage(t, router, "story", "bg.png", pngBytes).Code)

	client.On("Submit", mock.Anything, mock.MatchedBy(func(req request.GenerationRequest) bool {
		sr, ok := req.(request.StoryRequest)
		return ok && sr.Prompt == "A dragon learns to code" && sr.Background.Kind() == request.BackgroundUploadedImage
	})).Return(generator.Result{
		Pipeline:     request.PipelineStory,
		ArtifactPath: "/out/story_42.mp4",
		Text:         "Once upon a time...",
	}, nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/forms/story/submit", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp := decodeState(t, rec)
	assert.Equal(t, lifecycle.PhaseSucceeded, resp.Phase)
	assert.Equal(t, "http://localhost:8000/static/story_42.mp4", resp.ArtifactURL)
	assert.Equal(t, "Once upon a time...", resp.Caption)
	assert.Equal(t, present.HeadingStory, resp.Heading)
	assert.Equal(t, "story", resp.Pipeline)
	assert.Equal(t, uint64(1), resp.Seq)

	f := controller.StoryForm()
	assert.Nil(t, f.Image)
	assert.True(t, f.GenerateNarration)
	client.AssertExpectations(t)
}

func TestSubmit_ValidationError(t *testing.T) {
	router, client, _ := newTestRouter(t, syncDispatcher{})

	rec := doJSON(t, router, http.MethodPost, "/forms/community/submit", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, request.MsgMissingCommunity, resp.Error)
	client.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)

	state := decodeState(t, doJSON(t, router, http.MethodGet, "/state", nil))
	assert.Equal(t, lifecycle.PhaseIdle, state.Phase)
	assert.Empty(t, state.Error)
}

func TestSubmit_Rejected(t *testing.T) {
	router, client, controller := newTestRouter(t, syncDispatcher{})

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPut, "/forms/story", StoryFormRequest{
		Prompt:     "A dragon learns to code",
		YouTubeURL: "https://youtu.be/x",
	}).Code)
	client.On("Submit", mock.Anything, mock.Anything).
		Return(generator.Result{}, &generator.RejectedError{StatusCode: 500, Detail: "model overloaded"}).Once()

	rec := doJSON(t, router, http.MethodPost, "/forms/story/submit", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp := decodeState(t, rec)
	assert.Equal(t, lifecycle.PhaseFailed, resp.Phase)
	assert.Equal(t, "model overloaded", resp.Error)
	assert.Equal(t, string(lifecycle.FailureRejected), resp.Failure)
	assert.Equal(t, "https://youtu.be/x", controller.StoryForm().YouTubeURL)
}

func TestSubmit_BusyWhileInFlight(t *testing.T) {
	held := &heldDispatcher{}
	router, client, _ := newTestRouter(t, held)

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPut, "/forms/story", StoryFormRequest{Prompt: "p"}).Code)
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPut, "/forms/community", CommunityFormRequest{Subreddit: "AskReddit"}).Code)
	client.On("Submit", mock.Anything, mock.Anything).
		Return(generator.Result{ArtifactPath: "/out/a.mp4"}, nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/forms/story/submit", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	state := decodeState(t, rec)
	assert.True(t, state.Busy)
	assert.Equal(t, lifecycle.PhaseSubmitting, state.Phase)

	for _, path := range []string{"/forms/story/submit", "/forms/community/submit"} {
		rec = doJSON(t, router, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, path)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "BUSY", resp.Code)
	}

	assert.Equal(t, http.StatusConflict, doJSON(t, router, http.MethodPut, "/forms/story", StoryFormRequest{Prompt: "q"}).Code)
	assert.Equal(t, http.StatusConflict, uploadImage(t, router, "story", "bg.png", pngBytes).Code)
	assert.Equal(t, http.StatusConflict, doJSON(t, router, http.MethodDelete, "/state", nil).Code)

	held.release()

	state = decodeState(t, doJSON(t, router, http.MethodGet, "/state", nil))
	assert.Equal(t, lifecycle.PhaseSucceeded, state.Phase)
	assert.Equal(t, "http://localhost:8000/static/a.mp4", state.ArtifactURL)
	client.AssertNumberOfCalls(t, "Submit", 1)
}

func TestDismissState(t *testing.T) {
	router, client, _ := newTestRouter(t, syncDispatcher{})

	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPut, "/forms/story", StoryFormRequest{Prompt: "p"}).Code)
	client.On("Submit", mock.Anything, mock.Anything).
		Return(generator.Result{ArtifactPath: "/out/a.mp4"}, nil).Once()
	require.Equal(t, http.StatusAccepted, doJSON(t, router, http.MethodPost, "/forms/story/submit", nil).Code)

	rec := doJSON(t, router, http.MethodDelete, "/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	state := decodeState(t, rec)
	assert.Equal(t, lifecycle.PhaseIdle, state.Phase)
	assert.Empty(t, state.ArtifactURL)
}

func TestGetForm(t *testing.T) {
	router, _, _ := newTestRouter(t, syncDispatcher{})

	rec := doJSON(t, router, http.MethodGet, "/forms/community", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FormResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, FormResponse{Pipeline: "community"}, resp)
}

func TestRequestID(t *testing.T) {
	router, _, _ := newTestRouter(t, syncDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := middleware.RequestID(AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, "busy", "BUSY")
	})))
	req := httptest.NewRequest(http.MethodPost, "/forms/story/submit", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "req-9", entry["request_id"])
	assert.Equal(t, float64(http.StatusConflict), entry["status"])
	assert.Equal(t, "/forms/story/submit", entry["path"])
}

func TestPutImage_BodyTooLarge(t *testing.T) {
	router, _, controller := newTestRouter(t, syncDispatcher{})

	rec := uploadImage(t, router, "story", "huge.png", make([]byte, maxUploadBody+1))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "IMAGE_TOO_LARGE", resp.Code)
	assert.Nil(t, controller.StoryForm().Image)
}

func TestCORSMiddleware(t *testing.T) {
	client := &mockClient{}
	controller := lifecycle.NewController(client, lifecycle.WithDispatcher(syncDispatcher{}))
	h := NewHandlers(controller, present.NewPresenter("http://localhost:8000/static/"), testLogger())

	cfg := Config{AllowedOrigins: []string{"https://example.com"}}
	router := NewRouter(h, testLogger(), cfg)

	// Test with allowed origin
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// Test with a foreign origin
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// Test OPTIONS preflight
	req = httptest.NewRequest(http.MethodOptions, "/forms/story/submit", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestRecover(t *testing.T) {
	// Create a handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := Recover(testLogger())(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}
