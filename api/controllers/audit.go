package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmexa/pharmastock-backend/api/responses"
	"github.com/pharmexa/pharmastock-backend/api/validators"
	"github.com/pharmexa/pharmastock-backend/internal/audit"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
)

// MedicationAuditTrail lists the audit events recorded for a medication,
// newest first.
func MedicationAuditTrail(repo audit.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit store unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(chi.URLParam(r, "medicationId"), "medication_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := repo.ListByMedication(r.Context(), id, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit events"))
			return
		}

		responses.WriteSuccess(w, events)
	}
}
