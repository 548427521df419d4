package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/resumatch/internal/api/response"
	"github.com/kiranshivaraju/resumatch/internal/jobs"
	"github.com/kiranshivaraju/resumatch/pkg/models"
)

// AnalysisService is the job lifecycle surface the handlers depend on.
type AnalysisService interface {
	Submit(ctx context.Context, p jobs.SubmitParams) (*models.AnalysisJob, error)
	Get(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	ListByResume(ctx context.Context, resumeID uuid.UUID) ([]*models.AnalysisJob, error)
	Status(ctx context.Context, id uuid.UUID) (string, error)
}

type submitRequest struct {
	ResumeID       string `json:"resume_id"`
	JobDescription string `json:"job_description"`
	IsURL          bool   `json:"is_url"`
	Provider       string `json:"provider"`
	APIKey         string `json:"api_key"`
	Model          string `json:"model"`
}

// maxSubmitBytes caps the JSON body of a submit request. Pasted job
// descriptions are well below this.
const maxSubmitBytes = 1 << 20

// NewSubmitAnalysisHandler returns an http.HandlerFunc for POST /api/v1/analyses.
func NewSubmitAnalysisHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBytes)

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large", nil)
				return
			}
			response.InvalidRequest(w, "Invalid JSON body")
			return
		}

		resumeID, err := uuid.Parse(strings.TrimSpace(req.ResumeID))
		if err != nil {
			response.InvalidRequest(w, "resume_id must be a valid UUID")
			return
		}

		job, err := svc.Submit(r.Context(), jobs.SubmitParams{
			ResumeID:       resumeID,
			JobDescription: req.JobDescription,
			IsURL:          req.IsURL,
			Provider:       req.Provider,
			Credential:     req.APIKey,
			Model:          req.Model,
		})
		switch {
		case err == nil:
			response.Accepted(w, job)
		case errors.Is(err, jobs.ErrInvalidInput):
			response.InvalidRequest(w, err.Error())
		case errors.Is(err, jobs.ErrResumeNotFound):
			response.NotFound(w, "Resume not found")
		default:
			response.Internal(w, r, err)
		}
	}
}

// NewGetAnalysisHandler returns an http.HandlerFunc for GET /api/v1/analyses/{jobID}.
func NewGetAnalysisHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "jobID")
		if !ok {
			return
		}
		job, err := svc.Get(r.Context(), id)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		response.JSON(w, job)
	}
}

type statusResponse struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

// NewAnalysisStatusHandler returns an http.HandlerFunc for GET /api/v1/analyses/{jobID}/status.
func NewAnalysisStatusHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "jobID")
		if !ok {
			return
		}
		status, err := svc.Status(r.Context(), id)
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		response.JSON(w, statusResponse{ID: id, Status: status})
	}
}

// NewListResumeAnalysesHandler returns an http.HandlerFunc for GET /api/v1/resumes/{resumeID}/analyses.
func NewListResumeAnalysesHandler(svc AnalysisService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "resumeID")
		if !ok {
			return
		}
		list, err := svc.ListByResume(r.Context(), id)
		switch {
		case err == nil:
			response.Collection(w, list, len(list))
		case errors.Is(err, jobs.ErrResumeNotFound):
			response.NotFound(w, "Resume not found")
		default:
			response.Internal(w, r, err)
		}
	}
}

func writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, jobs.ErrJobNotFound) {
		response.NotFound(w, "Analysis not found")
		return
	}
	response.Internal(w, r, err)
}

// pathUUID parses a chi URL parameter, writing a 400 when it is malformed.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.InvalidRequest(w, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
