package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"edurag/internal/handlers"
	"edurag/internal/service"
	"edurag/internal/uploads"
	"edurag/internal/vectorstore"
)

// DefaultMaxUploadSize bounds a multipart upload request when Deps leaves it unset.
const DefaultMaxUploadSize = 100 << 20

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Service     service.Service
	Uploads     *uploads.Manager
	VectorStore vectorstore.VectorStore
	DB          handlers.Pinger
	// HealthCollection is the vector collection looked up by the health check.
	HealthCollection string
	// Backends lists the answering backends that are ready to use.
	Backends func() []string
	// DefaultBackend answers requests that name no backend.
	DefaultBackend string
	MaxUploadSize  int64
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)

	// Add CORS middleware
	r.Use(CORS)

	maxUpload := deps.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}

	askHandler := handlers.NewAskHandler(deps.Service, deps.DefaultBackend)
	ingestHandler := handlers.NewIngestHandler(deps.Service, deps.Uploads)
	uploadHandler := handlers.NewUploadHandler(deps.Service, deps.Uploads, maxUpload)
	feedbackHandler := handlers.NewFeedbackHandler(deps.Service)
	summarizeHandler := handlers.NewSummarizeHandler(deps.Service, deps.DefaultBackend)
	collectionHandler := handlers.NewCollectionHandler(deps.Service)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.DB, deps.HealthCollection, deps.Backends)

	// Register API routes
	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/upload", uploadHandler)
		r.Method(http.MethodPost, "/ingest", ingestHandler)
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodPost, "/feedback", feedbackHandler)
		r.Method(http.MethodPost, "/summarize", summarizeHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Route("/collections/{collection}", func(r chi.Router) {
			r.Delete("/", collectionHandler.Delete)
			r.Get("/stats", collectionHandler.Stats)
			r.Get("/chunks/{id}", collectionHandler.Chunk)
		})
	})

	return r
}
