package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopdesk/shopdesk-core/internal/document"
)

type createSubmissionRequest struct {
	SubmissionID string  `json:"submission_id"`
	CompanyName  string  `json:"company_name,omitempty"`
	Email        string  `json:"email,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	City         string  `json:"city,omitempty"`
	BusinessType string  `json:"business_type,omitempty"`
	CustomerID   *string `json:"customer_id,omitempty"`
}

// handleListSubmissions returns document submissions (paginated).
func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	subs, err := s.documents.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list submissions failed", "error", err)
		writeInternalError(w, "failed to list submissions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"submissions": subs,
		"count":       len(subs),
		"limit":       limit,
		"offset":      offset,
	})
}

// handleCreateSubmission registers a new document submission record.
func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	sub := &document.Submission{
		SubmissionID: req.SubmissionID,
		CompanyName:  req.CompanyName,
		Email:        req.Email,
		Phone:        req.Phone,
		City:         req.City,
		BusinessType: req.BusinessType,
		CustomerID:   req.CustomerID,
	}

	if err := s.documents.CreateSubmission(r.Context(), sub); err != nil {
		switch {
		case errors.Is(err, document.ErrInvalidSubmission):
			writeBadRequest(w, err.Error())
		case errors.Is(err, document.ErrSubmissionExists):
			writeConflict(w, "submission ID already exists")
		default:
			s.logger.Error("create submission failed", "error", err)
			writeInternalError(w, "failed to create submission")
		}
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// handleSearchSubmissions searches by company name, phone or submission ID.
func (s *Server) handleSearchSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeBadRequest(w, "q query parameter is required")
		return
	}

	subs, err := s.documents.Search(r.Context(), q)
	if err != nil {
		s.logger.Error("search submissions failed", "query", q, "error", err)
		writeInternalError(w, "failed to search submissions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"submissions": subs,
		"count":       len(subs),
	})
}

// handleGetSubmission returns a single submission by its public ID.
func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")

	sub, err := s.documents.GetSubmission(r.Context(), submissionID)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			writeNotFound(w, "submission not found")
			return
		}
		s.logger.Error("get submission failed", "submission_id", submissionID, "error", err)
		writeInternalError(w, "failed to get submission")
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// handleScanSubmission rebuilds a submission's file records from the object
// store. This recovers records after out-of-band uploads or metadata loss.
func (s *Server) handleScanSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")

	sub, err := s.documents.ScanAndSync(r.Context(), submissionID)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			writeNotFound(w, "submission not found")
			return
		}
		s.logger.Error("scan submission failed", "submission_id", submissionID, "error", err)
		writeInternalError(w, "failed to scan submission")
		return
	}

	s.logger.Info("submission rescanned from storage", "submission_id", submissionID)
	writeJSON(w, http.StatusOK, sub)
}

// handleUploadFile accepts a multipart file upload for a submission.
//
// Form fields: "file" (required) and "category" (optional, defaults to
// the general files category). Re-uploading the same filename creates a
// new version; the previous version stays retrievable.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "multipart field 'file' is required")
		return
	}
	defer file.Close() //nolint:errcheck // read-only temp file

	category := r.FormValue("category")
	if category == "" {
		category = document.DefaultCategory
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	result, err := s.documents.Upload(r.Context(), submissionID, category, header.Filename, file, header.Size, contentType)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			writeNotFound(w, "submission not found")
			return
		}
		s.logger.Error("file upload failed",
			"submission_id", submissionID,
			"filename", header.Filename,
			"error", err,
		)
		writeInternalError(w, "failed to upload file")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleGetFile returns download details (presigned URL) for a file.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")
	filename := chi.URLParam(r, "filename")
	category := r.URL.Query().Get("category")

	dl, err := s.documents.Get(r.Context(), submissionID, filename, category)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) || errors.Is(err, document.ErrFileNotFound) {
			writeNotFound(w, "file not found")
			return
		}
		s.logger.Error("get file failed",
			"submission_id", submissionID,
			"filename", filename,
			"error", err,
		)
		writeInternalError(w, "failed to get file")
		return
	}

	writeJSON(w, http.StatusOK, dl)
}

// handleDeleteFile removes a file from storage and the submission record.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")
	filename := chi.URLParam(r, "filename")
	category := r.URL.Query().Get("category")

	if err := s.documents.Delete(r.Context(), submissionID, filename, category); err != nil {
		if errors.Is(err, document.ErrNotFound) || errors.Is(err, document.ErrFileNotFound) {
			writeNotFound(w, "file not found")
			return
		}
		s.logger.Error("delete file failed",
			"submission_id", submissionID,
			"filename", filename,
			"error", err,
		)
		writeInternalError(w, "failed to delete file")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("delete", "document", submissionID+"/"+filename, claims.Subject, map[string]any{
		"filename": filename,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleFileVersions returns the current and archived versions of a file.
func (s *Server) handleFileVersions(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionID")
	filename := chi.URLParam(r, "filename")
	category := r.URL.Query().Get("category")

	versions, err := s.documents.FileVersions(r.Context(), submissionID, filename, category)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) || errors.Is(err, document.ErrFileNotFound) {
			writeNotFound(w, "file not found")
			return
		}
		s.logger.Error("file versions failed",
			"submission_id", submissionID,
			"filename", filename,
			"error", err,
		)
		writeInternalError(w, "failed to list file versions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filename": filename,
		"versions": versions,
		"count":    len(versions),
	})
}
