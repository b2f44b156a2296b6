package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pharmexa/pharmastock-backend/api/middleware"
	"github.com/pharmexa/pharmastock-backend/api/responses"
	"github.com/pharmexa/pharmastock-backend/api/validators"
	"github.com/pharmexa/pharmastock-backend/internal/medications"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
)

func medicationActor(r *http.Request) (medications.Actor, error) {
	id, err := actorID(r)
	if err != nil {
		return medications.Actor{}, err
	}
	return medications.Actor{UserID: id, Role: middleware.RoleFromContext(r.Context())}, nil
}

// MedicationCreate handles registering a new medication in the inventory.
func MedicationCreate(svc medications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "medication service unavailable"))
			return
		}

		actor, err := medicationActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input medications.CreateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), input, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// MedicationList returns a filtered inventory page.
func MedicationList(svc medications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "medication service unavailable"))
			return
		}

		page, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := medications.Filters{
			BelowMinStock: queryBool(r, "below_min_stock"),
		}
		if name := validators.SanitizeString(r.URL.Query().Get("name"), 200); name != "" {
			filters.Name = &name
		}
		if supplier := validators.SanitizeString(r.URL.Query().Get("supplier"), 200); supplier != "" {
			filters.Supplier = &supplier
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
			categoryID, err := validators.ParseQueryInt(r, "category_id", 0, 1, 1<<31)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			id64 := int64(categoryID)
			filters.CategoryID = &id64
		}
		expiring, err := queryDate(r, "expiring_before")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.ExpiringBefore = expiring

		rows, err := svc.List(r.Context(), page, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

// MedicationDetail returns a single medication by id.
func MedicationDetail(svc medications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "medication service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(chi.URLParam(r, "medicationId"), "medication_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		medication, err := svc.FindByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, medication)
	}
}

// MedicationUpdate handles the general update path. Quantity corrections that
// need a reason go through MedicationQuantityUpdate instead.
func MedicationUpdate(svc medications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "medication service unavailable"))
			return
		}

		actor, err := medicationActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseUUIDParam(chi.URLParam(r, "medicationId"), "medication_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input medications.UpdateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), id, input, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, updated)
	}
}

// MedicationQuantityUpdate handles the reasoned quantity path.
func MedicationQuantityUpdate(svc medications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "medication service unavailable"))
			return
		}

		actor, err := medicationActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseUUIDParam(chi.URLParam(r, "medicationId"), "medication_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input medications.QuantityInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateQuantity(r.Context(), id, input, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, updated)
	}
}

// MedicationDelete removes a medication from the inventory.
func MedicationDelete(svc medications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "medication service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(chi.URLParam(r, "medicationId"), "medication_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
