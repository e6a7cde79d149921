// Package report exposes the report-job API: submit an upload, poll job
// status, resolve finished artifacts and retry failed jobs.
package report

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cloudlens/advisor-hub/pkg/adapters"
	"github.com/cloudlens/advisor-hub/pkg/models/api"
	"github.com/cloudlens/advisor-hub/pkg/models/domain"
	reportsvc "github.com/cloudlens/advisor-hub/pkg/services/report"
)

// OwnerHeader identifies the tenant a request acts for. Upstream auth is
// expected to have verified it before the request reaches this service.
const OwnerHeader = "X-Owner-Ref"

const defaultMaxUploadBytes = 20 * 1024 * 1024

type Handler struct {
	service        *reportsvc.Service
	maxUploadBytes int64
}

func NewHandler(service *reportsvc.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{service: service, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" {
		writeError(w, r, http.StatusBadRequest, "missing "+OwnerHeader+" header")
		return
	}

	// Leave headroom over the file limit for the multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+64*1024)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "could not read upload")
		return
	}

	job, duplicate, err := h.service.Submit(ctx, reportsvc.SubmitRequest{
		Data:       data,
		Filename:   header.Filename,
		OwnerRef:   owner,
		Formats:    parseFormats(r.FormValue("formats")),
		TemplateID: r.FormValue("template"),
	})
	if err != nil {
		if errors.Is(err, reportsvc.ErrNoFormats) || strings.Contains(err.Error(), "unsupported output format") {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to submit report job")
		writeError(w, r, http.StatusInternalServerError, "could not accept the upload")
		return
	}

	status := http.StatusAccepted
	if duplicate {
		status = http.StatusOK
	}
	writeJSON(w, r, status, api.SubmitResponse{
		Job:       adapters.MapDomainJobToAPI(job),
		Duplicate: duplicate,
	})
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	job, err := h.service.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, reportsvc.ErrJobNotFound) {
			writeError(w, r, http.StatusNotFound, "no such report job")
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", id).Msg("failed to load report job")
		writeError(w, r, http.StatusInternalServerError, "could not load the job")
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapDomainJobToAPI(job))
}

func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	format, ok := domain.ParseFormat(chi.URLParam(r, "format"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "unknown artifact format")
		return
	}

	url, err := h.service.ArtifactURL(ctx, id, format)
	if err != nil {
		switch {
		case errors.Is(err, reportsvc.ErrJobNotFound):
			writeError(w, r, http.StatusNotFound, "no such report job")
		case errors.Is(err, reportsvc.ErrArtifactNotReady):
			writeError(w, r, http.StatusConflict, "artifact is not ready")
		default:
			zerolog.Ctx(ctx).Error().Err(err).Str("job_id", id).Msg("failed to resolve artifact")
			writeError(w, r, http.StatusInternalServerError, "could not resolve the artifact")
		}
		return
	}
	writeJSON(w, r, http.StatusOK, api.ArtifactResponse{Format: string(format), URL: url})
}

func (h *Handler) RetryReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	job, err := h.service.Retry(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, reportsvc.ErrJobNotFound):
			writeError(w, r, http.StatusNotFound, "no such report job")
		case errors.Is(err, reportsvc.ErrRetryRefused):
			writeError(w, r, http.StatusConflict, "job is not eligible for retry")
		default:
			zerolog.Ctx(ctx).Error().Err(err).Str("job_id", id).Msg("failed to retry report job")
			writeError(w, r, http.StatusInternalServerError, "could not retry the job")
		}
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapDomainJobToAPI(job))
}

// parseFormats splits the comma separated formats field. Unknown names are
// passed through so the service can reject them with a specific message.
func parseFormats(raw string) []domain.ArtifactFormat {
	var formats []domain.ArtifactFormat
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part != "" {
			formats = append(formats, domain.ArtifactFormat(part))
		}
	}
	return formats
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, map[string]string{"error": message})
}
