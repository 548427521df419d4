package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/resumatch/internal/api/middleware"
	"github.com/kiranshivaraju/resumatch/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	UploadResume http.HandlerFunc
	ListResumes  http.HandlerFunc
	GetResume    http.HandlerFunc

	SubmitAnalysis     http.HandlerFunc
	GetAnalysis        http.HandlerFunc
	AnalysisStatus     http.HandlerFunc
	ListResumeAnalyses http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Route("/api/v1/resumes", func(r chi.Router) {
			r.Post("/", orNotImplemented(deps.UploadResume))
			r.Get("/", orNotImplemented(deps.ListResumes))
			r.Get("/{resumeID}", orNotImplemented(deps.GetResume))
			r.Get("/{resumeID}/analyses", orNotImplemented(deps.ListResumeAnalyses))
		})

		r.Route("/api/v1/analyses", func(r chi.Router) {
			r.Post("/", orNotImplemented(deps.SubmitAnalysis))
			r.Get("/{jobID}", orNotImplemented(deps.GetAnalysis))
			r.Get("/{jobID}/status", orNotImplemented(deps.AnalysisStatus))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
