package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"edurag/internal/indexer"
	"edurag/internal/rag"
	"edurag/internal/service"
	"edurag/internal/service/mocks"
	"edurag/internal/uploads"
	"edurag/internal/vectorstore"
)

func newTestRouter(t *testing.T, mockService *mocks.MockService) http.Handler {
	t.Helper()
	uploadsManager, err := uploads.NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return NewRouter(&Deps{
		Service:          mockService,
		Uploads:          uploadsManager,
		VectorStore:      vectorstore.NewMemoryStore(),
		HealthCollection: "edurag_health",
		Backends:         func() []string { return []string{"groq"} },
		DefaultBackend:   "groq",
	})
}

func TestNewRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := newTestRouter(t, mocks.NewMockService(ctrl))
	if router == nil {
		t.Fatal("NewRouter() returned nil")
	}
}

func TestRouter_Routes(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockService(ctrl)
	mockService.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(rag.Answer{Text: "A", Sources: []rag.Source{}}, nil).AnyTimes()
	mockService.EXPECT().Stats(gomock.Any(), "physics").Return(&indexer.CollectionStats{Collection: "physics"}, nil).AnyTimes()

	router := newTestRouter(t, mockService)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{
			name:       "POST /api/ask",
			method:     http.MethodPost,
			path:       "/api/ask",
			body:       `{"collection":"physics","question":"Q"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET /api/ask method not allowed",
			method:     http.MethodGet,
			path:       "/api/ask",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "POST /api/ingest exists",
			method:     http.MethodPost,
			path:       "/api/ingest",
			body:       "{",
			wantStatus: http.StatusBadRequest, // Bad request due to invalid body, but route exists
		},
		{
			name:       "POST /api/upload exists",
			method:     http.MethodPost,
			path:       "/api/upload",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "POST /api/feedback exists",
			method:     http.MethodPost,
			path:       "/api/feedback",
			body:       "{",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "POST /api/summarize exists",
			method:     http.MethodPost,
			path:       "/api/summarize",
			body:       "{",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "GET collection stats",
			method:     http.MethodGet,
			path:       "/api/collections/physics/stats",
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET /api/health",
			method:     http.MethodGet,
			path:       "/api/health",
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			path:       "/api/chat",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_MiddlewareApplied(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := newTestRouter(t, mocks.NewMockService(ctrl))

	req := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	// Check CORS headers are present
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Router should apply CORS middleware")
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("Router should assign a request ID")
	}
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockService(ctrl)
	mockService.EXPECT().
		Ask(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, service.AskRequest) (rag.Answer, error) { panic("boom") })

	router := newTestRouter(t, mockService)
	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewBufferString(`{"collection":"physics","question":"Q"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %v, want %v", w.Code, http.StatusInternalServerError)
	}
}
