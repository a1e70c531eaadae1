package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contentgen/contentgen-backend/internal/auth"
	"github.com/contentgen/contentgen-backend/internal/blob"
	"github.com/contentgen/contentgen-backend/internal/config"
	"github.com/contentgen/contentgen-backend/internal/draft"
	"github.com/contentgen/contentgen-backend/internal/generation"
	"github.com/contentgen/contentgen-backend/internal/metrics"
	"github.com/contentgen/contentgen-backend/internal/notify"
	"github.com/contentgen/contentgen-backend/internal/persist"
	"github.com/contentgen/contentgen-backend/internal/records"
	"github.com/contentgen/contentgen-backend/internal/workflow"
	"github.com/contentgen/contentgen-backend/internal/ws"
	kvmemory "github.com/contentgen/contentgen-backend/pkg/kv/memory"
)

var (
	testMetricsOnce sync.Once
	testMetricsObj  *metrics.Metrics
)

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	testMetricsOnce.Do(func() {
		m, _, err := metrics.Setup("api-test")
		if err != nil {
			t.Fatalf("metrics setup: %v", err)
		}
		testMetricsObj = m
	})
	return testMetricsObj
}

type fakeGen struct {
	mu       sync.Mutex
	result   generation.Result
	imageURL string
	err      error
}

func (f *fakeGen) GenerateHooksAndBody(ctx context.Context, req generation.Request) (*generation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r := f.result
	return &r, nil
}

func (f *fakeGen) GenerateImage(ctx context.Context, req generation.ImageRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.imageURL, f.err
}

type testServer struct {
	router *chi.Mux
	gen    *fakeGen
	store  records.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	m := newTestMetrics(t)
	logger := zap.NewNop().Sugar()

	sessions := draft.NewManager(kvmemory.New(0), time.Hour, logger, m)
	t.Cleanup(sessions.Close)

	store := records.NewMemoryStore()
	mem := kvmemory.New(0)
	t.Cleanup(func() { mem.Close() })
	images := blob.NewStore(mem, "post_images")
	documents := blob.NewStore(mem, "company_documents")

	hub := ws.NewHub(nil, logger, m)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	sse := ws.NewSSEHandler(hub, logger)

	gen := &fakeGen{
		result: generation.Result{
			Hooks: []string{"hook 1", "hook 2", "hook 3", "hook 4"},
			Body:  "generated body",
		},
		imageURL: "https://cdn.example.com/generated.png",
	}
	// Inline spawn makes the async operations complete before the
	// HTTP response is written, so assertions see the final state.
	coord := workflow.NewCoordinator(gen, notify.NopSink{}, logger, m,
		workflow.WithSpawn(func(fn func()) { fn() }))

	adapter := persist.NewAdapter(store, images, notify.NopSink{}, logger, 24*time.Hour)

	cfg := &config.Config{Env: "dev"}
	h := NewHandler(sessions, coord, adapter, store, documents, hub, sse, cfg, logger, m)
	mw := NewMiddleware(logger, m)

	router := h.Routes(mw, auth.InsecureVerifier{}, []string{"http://localhost:3000"}, 60000)
	return &testServer{router: router, gen: gen, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

func (ts *testServer) createDraft(t *testing.T, token, topic string) DraftDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/drafts", token, CreateDraftRequest{Topic: topic})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[DraftDTO](t, rec)
}

func TestHealthEndpointsArePublic(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/readyz", "", nil).Code)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/v1/drafts", "", CreateDraftRequest{Topic: "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateDraft_Defaults(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "go generics")

	assert.NotEmpty(t, dto.SessionID)
	assert.Equal(t, "go generics", dto.Topic)
	assert.Equal(t, string(draft.ContentEngagement), dto.ContentType)
	assert.Equal(t, string(draft.ToneProfessional), dto.Tone)
	assert.Equal(t, string(draft.LengthMedium), dto.Length)
	assert.Equal(t, string(draft.ImageModeGenerate), dto.Image.Mode)
	assert.Equal(t, -1, dto.Hooks.SelectedIndex)
	assert.Equal(t, string(draft.PhaseIdle), dto.Phase)
}

func TestCreateDraft_RejectsUnknownTone(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/v1/drafts", "alice", CreateDraftRequest{Topic: "x", Tone: "sarcastic"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestGetDraft_ForeignSessionIs404(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "topic")

	rec := ts.do(t, http.MethodGet, "/v1/drafts/"+dto.SessionID, "bob", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "DRAFT_NOT_FOUND", resp.Error.Code)
}

func TestUpdateDraft(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "topic")

	body := "hand-written body"
	tone := string(draft.ToneCasual)
	rec := ts.do(t, http.MethodPatch, "/v1/drafts/"+dto.SessionID, "alice",
		UpdateDraftRequest{Body: &body, Tone: &tone})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decodeBody[DraftDTO](t, rec)
	assert.Equal(t, "hand-written body", updated.Body)
	assert.Equal(t, tone, updated.Tone)

	bad := "sarcastic"
	rec = ts.do(t, http.MethodPatch, "/v1/drafts/"+dto.SessionID, "alice", UpdateDraftRequest{Tone: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "go generics")

	rec := ts.do(t, http.MethodPost, "/v1/drafts/"+dto.SessionID+"/generate", "alice", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	// The test coordinator runs inline, so the accepted response
	// already reflects the finished operation.
	out := decodeBody[DraftDTO](t, rec)
	require.Len(t, out.Hooks.Candidates, 4)
	assert.Equal(t, "hook 1", out.Hooks.Candidates[0].Text)
	assert.Equal(t, -1, out.Hooks.SelectedIndex)
	assert.Equal(t, "generated body", out.Body)
	assert.Equal(t, string(draft.PhaseIdle), out.Phase)
}

func TestGenerate_EmptyTopic(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "")

	rec := ts.do(t, http.MethodPost, "/v1/drafts/"+dto.SessionID+"/generate", "alice", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestGenerate_TimeoutMapsTo504(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "topic")

	// First fill the draft, then make the next call fail.
	rec := ts.do(t, http.MethodPost, "/v1/drafts/"+dto.SessionID+"/generate", "alice", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	ts.gen.mu.Lock()
	ts.gen.err = &generation.TimeoutError{Timeout: 30 * time.Second}
	ts.gen.mu.Unlock()

	// The failure surfaces through the event sink, not the trigger
	// response; the draft keeps its previous content.
	rec = ts.do(t, http.MethodPost, "/v1/drafts/"+dto.SessionID+"/regenerate/text", "alice", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	out := decodeBody[DraftDTO](t, rec)
	assert.Equal(t, "generated body", out.Body)
	assert.Equal(t, string(draft.PhaseIdle), out.Phase)
}

func TestHookSelectionAndNavigation(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "topic")
	base := "/v1/drafts/" + dto.SessionID

	rec := ts.do(t, http.MethodPost, base+"/generate", "alice", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/hooks/select", "alice", SelectHookRequest{Index: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[DraftDTO](t, rec).Hooks.SelectedIndex)

	rec = ts.do(t, http.MethodPost, base+"/hooks/next", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decodeBody[DraftDTO](t, rec).Hooks.SelectedIndex)

	// Already at the last candidate; next clamps.
	rec = ts.do(t, http.MethodPost, base+"/hooks/next", "alice", nil)
	assert.Equal(t, 3, decodeBody[DraftDTO](t, rec).Hooks.SelectedIndex)

	rec = ts.do(t, http.MethodPost, base+"/hooks/previous", "alice", nil)
	assert.Equal(t, 2, decodeBody[DraftDTO](t, rec).Hooks.SelectedIndex)

	rec = ts.do(t, http.MethodPost, base+"/hooks/select", "alice", SelectHookRequest{Index: 9})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "HOOK_INDEX_OUT_OF_RANGE", resp.Error.Code)
}

func TestUpdateImage(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "topic")
	base := "/v1/drafts/" + dto.SessionID + "/image"

	style := string(draft.StyleWatercolor)
	rec := ts.do(t, http.MethodPut, base, "alice", UpdateImageRequest{Style: &style})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, style, decodeBody[DraftDTO](t, rec).Image.Style)

	style = string(draft.StyleDigitalIllustration)
	template := string(draft.TemplateSplitScreen)
	rec = ts.do(t, http.MethodPut, base, "alice", UpdateImageRequest{Style: &style, Template: &template})
	require.Equal(t, http.StatusOK, rec.Code)
	img := decodeBody[DraftDTO](t, rec).Image
	assert.Equal(t, style, img.Style)
	assert.Equal(t, template, img.Template)

	mode := "upload"
	rec = ts.do(t, http.MethodPut, base, "alice", UpdateImageRequest{Mode: &mode})
	require.Equal(t, http.StatusOK, rec.Code)

	// Style changes are rejected while in upload mode.
	rec = ts.do(t, http.MethodPut, base, "alice", UpdateImageRequest{Style: &style})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	unknown := "hologram"
	rec = ts.do(t, http.MethodPut, base, "alice", UpdateImageRequest{Mode: &unknown})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveImage_WithoutUploadIs404(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "topic")

	rec := ts.do(t, http.MethodDelete, "/v1/drafts/"+dto.SessionID+"/image", "alice", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "NO_UPLOADED_IMAGE", resp.Error.Code)
}

func TestUploadImage_RejectsBadFormat(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "topic")

	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	part, err := mp.CreateFormFile("image", "note.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mp.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/drafts/"+dto.SessionID+"/image/upload", &buf)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	req.Header.Set("Authorization", "Bearer alice")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code, rec.Body.String())
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "INVALID_IMAGE_FORMAT", resp.Error.Code)
}

func TestSaveDraftAndContentLibrary(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "go generics")
	base := "/v1/drafts/" + dto.SessionID

	rec := ts.do(t, http.MethodPost, base+"/generate", "alice", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = ts.do(t, http.MethodPost, base+"/hooks/select", "alice", SelectHookRequest{Index: 0})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/save", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decodeBody[ContentDTO](t, rec)
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, "draft", saved.Status)
	assert.Equal(t, "hook 1\n\ngenerated body", saved.FinalContent)

	// Saving again updates in place.
	rec = ts.do(t, http.MethodPost, base+"/save", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, saved.ID, decodeBody[ContentDTO](t, rec).ID)

	rec = ts.do(t, http.MethodGet, "/v1/content", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]ContentDTO](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	// Other users see an empty library.
	rec = ts.do(t, http.MethodGet, "/v1/content", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]ContentDTO](t, rec))

	rec = ts.do(t, http.MethodGet, "/v1/content/"+saved.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	newBody := "edited later"
	rec = ts.do(t, http.MethodPatch, "/v1/content/"+saved.ID, "alice", UpdateContentRequest{Body: &newBody})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edited later", decodeBody[ContentDTO](t, rec).Body)

	rec = ts.do(t, http.MethodDelete, "/v1/content/"+saved.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestScheduleDraft(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "topic")
	base := "/v1/drafts/" + dto.SessionID

	rec := ts.do(t, http.MethodPost, base+"/schedule", "alice", ScheduleRequest{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	scheduled := decodeBody[ContentDTO](t, rec)
	assert.Equal(t, "scheduled", scheduled.Status)
	require.NotNil(t, scheduled.ScheduledAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *scheduled.ScheduledAt, time.Minute)

	past := time.Now().Add(-time.Hour)
	rec = ts.do(t, http.MethodPost, base+"/schedule", "alice", ScheduleRequest{ScheduledAt: &past})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishDraft(t *testing.T) {
	ts := newTestServer(t)
	dto := ts.createDraft(t, "alice", "topic")

	rec := ts.do(t, http.MethodPost, "/v1/drafts/"+dto.SessionID+"/publish", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	published := decodeBody[ContentDTO](t, rec)
	assert.Equal(t, "published", published.Status)
	assert.NotNil(t, published.PublishedAt)
}

func TestPreview_NotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/v1/previews/nope", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompanies(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/companies", "alice", CompanyRequest{Industry: "saas"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "name is required")

	rec = ts.do(t, http.MethodPost, "/v1/companies", "alice", CompanyRequest{Name: "Acme", Industry: "saas"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[CompanyDTO](t, rec)

	rec = ts.do(t, http.MethodGet, "/v1/companies", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]CompanyDTO](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/v1/companies", "bob", nil)
	assert.Empty(t, decodeBody[[]CompanyDTO](t, rec))

	rec = ts.do(t, http.MethodDelete, "/v1/companies/"+created.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIntegrations_TokenNeverReturned(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/integrations", "alice",
		IntegrationRequest{Platform: "LinkedIn", AccessToken: "super-secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "super-secret")

	created := decodeBody[IntegrationDTO](t, rec)
	assert.Equal(t, "linkedin", created.Platform, "platform is normalized to lower case")
	assert.Equal(t, "connected", created.Status)

	rec = ts.do(t, http.MethodPost, "/v1/integrations", "alice", IntegrationRequest{Platform: "linkedin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "accessToken is required")

	rec = ts.do(t, http.MethodGet, "/v1/integrations", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]IntegrationDTO](t, rec)
	require.Len(t, list, 1)
	assert.NotContains(t, rec.Body.String(), "super-secret")

	rec = ts.do(t, http.MethodDelete, "/v1/integrations/linkedin", "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProfile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/profile", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPut, "/v1/profile", "alice",
		ProfileRequest{FullName: "Alice A", Timezone: "UTC"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/profile", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice A", decodeBody[ProfileDTO](t, rec).FullName)
}

func TestDocuments(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	part, err := mp.CreateFormFile("file", "../../etc/passwd")
	require.NoError(t, err)
	_, err = part.Write([]byte("brand guidelines"))
	require.NoError(t, err)
	require.NoError(t, mp.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	req.Header.Set("Authorization", "Bearer alice")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decodeBody[DocumentDTO](t, rec)
	assert.Equal(t, "passwd", doc.Name, "path traversal is stripped to the base name")

	listRec := ts.do(t, http.MethodGet, "/v1/documents", "alice", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	require.Len(t, decodeBody[[]DocumentDTO](t, listRec), 1)

	getRec := ts.do(t, http.MethodGet, "/v1/documents/passwd", "alice", nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	assert.Equal(t, "brand guidelines", getRec.Body.String())

	// Documents are scoped per user.
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/v1/documents/passwd", "bob", nil).Code)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/v1/documents/passwd", "alice", nil).Code)
	assert.Empty(t, decodeBody[[]DocumentDTO](t, ts.do(t, http.MethodGet, "/v1/documents", "alice", nil)))
}
