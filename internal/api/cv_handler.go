package api

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"cv-match/internal/cv"
	"cv-match/internal/storage"

	"go.uber.org/zap"
)

// maxUploadMemory is the part of a multipart request kept in memory; the
// rest spills to temporary files.
const maxUploadMemory = 32 << 20

type uploadedFile struct {
	name string
	data []byte
}

// UploadCandidatesHandler accepts one or more resumes
// @Summary Upload resumes
// @Description Upload resume files (PDF, DOCX, DOC, RTF, ODT, TXT); each is processed in the background
// @Tags candidates
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Resume files"
// @Success 201 {array} storage.Candidate
// @Failure 400 {object} errorBody
// @Router /candidates/upload [post]
func (a *API) UploadCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	a.handleUpload(w, r, nil)
}

// UploadJobResumesHandler accepts resumes for a specific job
// @Summary Upload resumes for a job
// @Tags jobs
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Job ID"
// @Param files formData file true "Resume files"
// @Success 201 {array} storage.Candidate
// @Failure 400 {object} errorBody
// @Failure 404 {object} errorBody
// @Router /jobs/{id}/resumes [post]
func (a *API) UploadJobResumesHandler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if _, err := a.repo.GetJob(r.Context(), jobID); err != nil {
		a.errorResponse(w, r, err)
		return
	}
	a.handleUpload(w, r, &jobID)
}

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request, jobID *string) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		a.errorResponse(w, r, &ValidationError{Field: "files", Message: "invalid multipart form"})
		return
	}

	files, err := readUploads(r.MultipartForm)
	if err != nil {
		a.errorResponse(w, r, err)
		return
	}

	created := make([]*storage.Candidate, 0, len(files))
	for _, f := range files {
		c, err := a.ingestor.CreateCandidate(r.Context(), jobID, f.name, f.data)
		if err != nil {
			a.abortUpload(r.Context(), created, f.name)
			a.errorResponse(w, r, err)
			return
		}
		created = append(created, c)
	}

	// every record exists before anything is queued
	for i, c := range created {
		a.queueResume(r.Context(), c.ID, files[i].data)
	}

	a.log.Info("resumes uploaded", zap.Int("count", len(created)))
	jsonResponse(w, http.StatusCreated, created)
}

// abortUpload marks candidates created earlier in a failed upload request
// as ERROR so none of them is left PENDING without a queued task.
func (a *API) abortUpload(ctx context.Context, created []*storage.Candidate, failedFile string) {
	ctx = context.WithoutCancel(ctx)
	msg := fmt.Sprintf("upload aborted: %s could not be stored", failedFile)
	for _, c := range created {
		c.Status = storage.StatusError
		c.ErrorMessage = &msg
		if err := a.repo.UpdateCandidate(ctx, c); err != nil {
			a.log.Error("[Upload] Failed to mark candidate as ERROR", zap.String("id", c.ID), zap.Error(err))
		}
	}
	if len(created) > 0 {
		a.log.Warn("[Upload] Upload aborted", zap.String("file", failedFile), zap.Int("marked_error", len(created)))
	}
}

// readUploads validates and reads every file under "files" (or "file").
func readUploads(form *multipart.Form) ([]uploadedFile, error) {
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		return nil, &ValidationError{Field: "files", Message: "no files uploaded"}
	}

	out := make([]uploadedFile, 0, len(headers))
	for _, h := range headers {
		if !cv.SupportedExtension(h.Filename) {
			return nil, &ValidationError{Field: "files", Message: fmt.Sprintf("unsupported file type: %s (supported: PDF, DOCX, DOC, RTF, ODT, TXT)", h.Filename)}
		}
		if h.Size > cv.MaxFileSize {
			return nil, &ValidationError{Field: "files", Message: fmt.Sprintf("%s is too large (max 10MB)", h.Filename)}
		}

		f, err := h.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", h.Filename, err)
		}
		data, err := cv.ReadUpload(h.Filename, f)
		f.Close()
		if errors.Is(err, cv.ErrFileTooLarge) {
			return nil, &ValidationError{Field: "files", Message: fmt.Sprintf("%s is too large (max 10MB)", h.Filename)}
		}
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", h.Filename, err)
		}
		if len(data) == 0 {
			return nil, &ValidationError{Field: "files", Message: fmt.Sprintf("%s is empty", h.Filename)}
		}
		out = append(out, uploadedFile{name: h.Filename, data: data})
	}
	return out, nil
}

// GetCandidateHandler returns a candidate with status and profile
// @Summary Get candidate
// @Tags candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} storage.Candidate
// @Failure 404 {object} errorBody
// @Router /candidates/{id} [get]
func (a *API) GetCandidateHandler(w http.ResponseWriter, r *http.Request) {
	c, err := a.repo.GetCandidate(r.Context(), r.PathValue("id"))
	if err != nil {
		a.errorResponse(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}
