package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shopdesk/shopdesk-core/internal/activity"
	"github.com/shopdesk/shopdesk-core/internal/customer"
)

// Pagination defaults shared by list endpoints.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// queryInt parses an integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// pageParams returns clamped limit/offset from the query string.
func pageParams(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset = queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type createCustomerRequest struct {
	Phone        string `json:"phone"`
	Name         string `json:"name"`
	VehicleMake  string `json:"vehicle_make,omitempty"`
	VehicleModel string `json:"vehicle_model,omitempty"`
	VehicleYear  string `json:"vehicle_year,omitempty"`
}

type updateCustomerRequest struct {
	Name         *string `json:"name,omitempty"`
	VehicleMake  *string `json:"vehicle_make,omitempty"`
	VehicleModel *string `json:"vehicle_model,omitempty"`
	VehicleYear  *string `json:"vehicle_year,omitempty"`
}

// handleListCustomers returns a paginated customer list.
func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	customers, total, err := s.customers.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list customers failed", "error", err)
		writeInternalError(w, "failed to list customers")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// handleCreateCustomer registers a new customer.
//
// The phone number is the natural key. If it is already registered the
// existing record's ID is returned with status "exists" rather than an
// error, so intake forms can be submitted repeatedly without failing.
func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	c := &customer.Customer{
		Phone:        req.Phone,
		Name:         req.Name,
		VehicleMake:  req.VehicleMake,
		VehicleModel: req.VehicleModel,
		VehicleYear:  req.VehicleYear,
	}

	err := s.customers.Create(r.Context(), c)
	if err != nil {
		switch {
		case errors.Is(err, customer.ErrPhoneExists):
			existing, lookupErr := s.customers.GetByPhone(r.Context(), customer.NormalisePhone(req.Phone))
			if lookupErr != nil {
				s.logger.Error("lookup of existing customer failed", "phone", req.Phone, "error", lookupErr)
				writeInternalError(w, "failed to create customer")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"id":      existing.ID,
				"status":  "exists",
				"message": "customer already registered with this phone number",
			})
			return
		case errors.Is(err, customer.ErrInvalidPhone), errors.Is(err, customer.ErrInvalidName):
			writeBadRequest(w, err.Error())
			return
		default:
			s.logger.Error("create customer failed", "error", err)
			writeInternalError(w, "failed to create customer")
			return
		}
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("customer created", "customer_id", c.ID, "created_by", claims.Subject)
	s.logCustomerActivity(r, activity.TypeCustomerCreated, "Customer registered: "+c.Name, c.ID)
	s.broadcast("customer.created", c)

	writeJSON(w, http.StatusCreated, c)
}

// handleSearchCustomers searches by name or phone fragment.
func (s *Server) handleSearchCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeBadRequest(w, "q query parameter is required")
		return
	}
	limit, _ := pageParams(r)

	customers, err := s.customers.Search(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("search customers failed", "query", q, "error", err)
		writeInternalError(w, "failed to search customers")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"count":     len(customers),
	})
}

// handleGetCustomer returns a single customer by ID.
func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.customers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			writeNotFound(w, "customer not found")
			return
		}
		s.logger.Error("get customer failed", "customer_id", id, "error", err)
		writeInternalError(w, "failed to get customer")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// handleUpdateCustomer patches a customer's mutable fields.
// The phone number is immutable; it is the record's identity.
func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	c, err := s.customers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			writeNotFound(w, "customer not found")
			return
		}
		s.logger.Error("get customer for update failed", "customer_id", id, "error", err)
		writeInternalError(w, "failed to update customer")
		return
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.VehicleMake != nil {
		c.VehicleMake = *req.VehicleMake
	}
	if req.VehicleModel != nil {
		c.VehicleModel = *req.VehicleModel
	}
	if req.VehicleYear != nil {
		c.VehicleYear = *req.VehicleYear
	}

	if err := s.customers.Update(r.Context(), c); err != nil {
		if errors.Is(err, customer.ErrInvalidName) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("update customer failed", "customer_id", id, "error", err)
		writeInternalError(w, "failed to update customer")
		return
	}

	s.broadcast("customer.updated", c)
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteCustomer removes a customer record.
func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	if err := s.customers.Delete(r.Context(), id); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			writeNotFound(w, "customer not found")
			return
		}
		s.logger.Error("delete customer failed", "customer_id", id, "error", err)
		writeInternalError(w, "failed to delete customer")
		return
	}

	s.logger.Info("customer deleted", "customer_id", id, "deleted_by", claims.Subject)
	s.auditLog("delete", "customer", id, claims.Subject, nil)

	w.WriteHeader(http.StatusNoContent)
}

// handleCustomerBookings returns all bookings for a customer.
func (s *Server) handleCustomerBookings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.customers.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			writeNotFound(w, "customer not found")
			return
		}
		s.logger.Error("get customer failed", "customer_id", id, "error", err)
		writeInternalError(w, "failed to get customer")
		return
	}

	bookings, err := s.bookings.ByCustomer(r.Context(), id)
	if err != nil {
		s.logger.Error("list customer bookings failed", "customer_id", id, "error", err)
		writeInternalError(w, "failed to list bookings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// handleCustomerDocuments returns document submissions linked to a customer.
func (s *Server) handleCustomerDocuments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	subs, err := s.documents.ListForCustomer(r.Context(), id)
	if err != nil {
		s.logger.Error("list customer documents failed", "customer_id", id, "error", err)
		writeInternalError(w, "failed to list documents")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"submissions": subs,
		"count":       len(subs),
	})
}

// handleCustomerActivity returns recent activity entries for a customer.
func (s *Server) handleCustomerActivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit, _ := pageParams(r)

	entries, err := s.activities.ByCustomer(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("list customer activity failed", "customer_id", id, "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activity": entries,
		"count":    len(entries),
	})
}

// logCustomerActivity records an activity entry tied to a customer (best-effort).
func (s *Server) logCustomerActivity(r *http.Request, actType, message, customerID string) {
	if s.activities == nil {
		return
	}
	a := &activity.Activity{
		Type:       actType,
		Message:    message,
		CustomerID: &customerID,
	}
	if err := s.activities.Log(r.Context(), a); err != nil {
		s.logger.Warn("activity log failed", "type", actType, "error", err)
	}
}

// broadcast sends an event to WebSocket subscribers (no-op before Start).
func (s *Server) broadcast(channel string, payload any) {
	if s.hub != nil {
		s.hub.Broadcast(channel, payload)
	}
}
