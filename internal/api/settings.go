package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopdesk/shopdesk-core/internal/settings"
)

type createServiceRequest struct {
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	Category        string  `json:"category,omitempty"`
}

type updateServiceRequest struct {
	Name            *string  `json:"name,omitempty"`
	Description     *string  `json:"description,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	Category        *string  `json:"category,omitempty"`
	Active          *bool    `json:"active,omitempty"`
}

type setSystemPromptRequest struct {
	Prompt string `json:"prompt"`
}

// handleListServices returns the service catalog. By default only active
// services are returned; pass include_inactive=true for the full catalog.
func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	var (
		services []settings.Service
		err      error
	)
	if r.URL.Query().Get("include_inactive") == "true" {
		services, err = s.services.ListAll(r.Context())
	} else {
		services, err = s.services.ListActive(r.Context())
	}
	if err != nil {
		s.logger.Error("list services failed", "error", err)
		writeInternalError(w, "failed to list services")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"services": services,
		"count":    len(services),
	})
}

// handleCreateService adds a service to the catalog.
func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	svc := &settings.Service{
		Name:            req.Name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Category:        req.Category,
		Active:          true,
	}
	if err := svc.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.services.Create(r.Context(), svc); err != nil {
		s.logger.Error("create service failed", "error", err)
		writeInternalError(w, "failed to create service")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("create", "service", svc.ID, claims.Subject, map[string]any{
		"name": svc.Name,
	})

	writeJSON(w, http.StatusCreated, svc)
}

// handleUpdateService patches a service's mutable fields.
func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) { //nolint:gocognit // field patching
	id := chi.URLParam(r, "id")

	var req updateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	svc, err := s.services.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, settings.ErrServiceNotFound) {
			writeNotFound(w, "service not found")
			return
		}
		s.logger.Error("get service for update failed", "service_id", id, "error", err)
		writeInternalError(w, "failed to update service")
		return
	}

	if req.Name != nil {
		svc.Name = *req.Name
	}
	if req.Description != nil {
		svc.Description = *req.Description
	}
	if req.DurationMinutes != nil {
		svc.DurationMinutes = *req.DurationMinutes
	}
	if req.Price != nil {
		svc.Price = *req.Price
	}
	if req.Category != nil {
		svc.Category = *req.Category
	}
	if req.Active != nil {
		svc.Active = *req.Active
	}

	if err := svc.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.services.Update(r.Context(), svc); err != nil {
		if errors.Is(err, settings.ErrServiceNotFound) {
			writeNotFound(w, "service not found")
			return
		}
		s.logger.Error("update service failed", "service_id", id, "error", err)
		writeInternalError(w, "failed to update service")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("update", "service", id, claims.Subject, nil)

	writeJSON(w, http.StatusOK, svc)
}

// handleDeactivateService retires a service without deleting it.
// Historical bookings keep referencing it by name.
func (s *Server) handleDeactivateService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.services.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, settings.ErrServiceNotFound) {
			writeNotFound(w, "service not found")
			return
		}
		s.logger.Error("deactivate service failed", "service_id", id, "error", err)
		writeInternalError(w, "failed to deactivate service")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("deactivate", "service", id, claims.Subject, nil)

	w.WriteHeader(http.StatusNoContent)
}

// handleGetWorkingHours returns the weekly opening hours.
func (s *Server) handleGetWorkingHours(w http.ResponseWriter, r *http.Request) {
	hours, err := s.settings.WorkingHours(r.Context())
	if err != nil {
		s.logger.Error("get working hours failed", "error", err)
		writeInternalError(w, "failed to get working hours")
		return
	}

	writeJSON(w, http.StatusOK, hours)
}

// handleSetWorkingHours replaces the weekly opening hours.
func (s *Server) handleSetWorkingHours(w http.ResponseWriter, r *http.Request) {
	var hours settings.WorkingHours
	if err := json.NewDecoder(r.Body).Decode(&hours); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := hours.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.settings.SetWorkingHours(r.Context(), hours); err != nil {
		s.logger.Error("set working hours failed", "error", err)
		writeInternalError(w, "failed to set working hours")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("update", "settings", settings.KeyWorkingHours, claims.Subject, nil)

	writeJSON(w, http.StatusOK, hours)
}

// handleGetSystemPrompt returns the assistant system prompt.
func (s *Server) handleGetSystemPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := s.settings.SystemPrompt(r.Context())
	if err != nil {
		s.logger.Error("get system prompt failed", "error", err)
		writeInternalError(w, "failed to get system prompt")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}

// handleSetSystemPrompt replaces the assistant system prompt.
func (s *Server) handleSetSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var req setSystemPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.settings.SetSystemPrompt(r.Context(), req.Prompt); err != nil {
		s.logger.Error("set system prompt failed", "error", err)
		writeInternalError(w, "failed to set system prompt")
		return
	}

	claims := claimsFromContext(r.Context())
	s.auditLog("update", "settings", settings.KeySystemPrompt, claims.Subject, nil)

	writeJSON(w, http.StatusOK, map[string]string{"prompt": req.Prompt})
}
