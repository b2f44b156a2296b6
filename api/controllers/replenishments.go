package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pharmexa/pharmastock-backend/api/middleware"
	"github.com/pharmexa/pharmastock-backend/api/responses"
	"github.com/pharmexa/pharmastock-backend/api/validators"
	"github.com/pharmexa/pharmastock-backend/internal/replenishments"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
)

type replenishmentCreateRequest struct {
	SiteID            string  `json:"site_id" validate:"required"`
	MedicationID      string  `json:"medication_id" validate:"required"`
	RequestedQuantity int     `json:"requested_quantity" validate:"required,gt=0"`
	Notes             *string `json:"notes"`
}

type replenishmentDecisionRequest struct {
	Notes *string `json:"notes"`
}

func replenishmentActor(r *http.Request) (replenishments.Actor, error) {
	id, err := actorID(r)
	if err != nil {
		return replenishments.Actor{}, err
	}
	return replenishments.Actor{UserID: id, Role: middleware.RoleFromContext(r.Context())}, nil
}

// ReplenishmentCreate opens a new site request on behalf of the caller.
func ReplenishmentCreate(svc replenishments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replenishment service unavailable"))
			return
		}

		actor, err := replenishmentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload replenishmentCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		siteID, err := validators.ParseUUIDParam(payload.SiteID, "site_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		medicationID, err := validators.ParseUUIDParam(payload.MedicationID, "medication_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), replenishments.CreateInput{
			SiteID:            siteID,
			MedicationID:      medicationID,
			RequestedQuantity: payload.RequestedQuantity,
			UserID:            actor.UserID,
			Notes:             payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ReplenishmentList returns requests matching the query filters.
func ReplenishmentList(svc replenishments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replenishment service unavailable"))
			return
		}

		page, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filters replenishments.Filters
		for key, dest := range map[string]**uuid.UUID{
			"site_id":       &filters.SiteID,
			"medication_id": &filters.MedicationID,
			"user_id":       &filters.UserID,
		} {
			parsed, err := queryUUID(r, key)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			*dest = parsed
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status := enums.RequestStatus(strings.ToUpper(raw))
			if !status.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown request status").WithDetails(map[string]any{"field": "status"}))
				return
			}
			filters.Status = &status
		}
		from, err := queryDate(r, "requested_from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.RequestedFrom = from
		to, err := queryDate(r, "requested_to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.RequestedTo = to

		rows, err := svc.FindAll(r.Context(), page, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

// ReplenishmentPending returns the approval queue, oldest first.
func ReplenishmentPending(svc replenishments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replenishment service unavailable"))
			return
		}

		page, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.FindPending(r.Context(), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

// ReplenishmentDetail returns a single request by id.
func ReplenishmentDetail(svc replenishments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replenishment service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(chi.URLParam(r, "requestId"), "request_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.FindByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, request)
	}
}

// ReplenishmentUpdate edits a pending request.
func ReplenishmentUpdate(svc replenishments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replenishment service unavailable"))
			return
		}

		actor, err := replenishmentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseUUIDParam(chi.URLParam(r, "requestId"), "request_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input replenishments.UpdateInput
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

// ReplenishmentApprove approves a pending request.
func ReplenishmentApprove(svc replenishments.Service, logg *logger.Logger) http.HandlerFunc {
	return replenishmentDecision(svc, logg, svcApprove)
}

// ReplenishmentReject rejects a pending request.
func ReplenishmentReject(svc replenishments.Service, logg *logger.Logger) http.HandlerFunc {
	return replenishmentDecision(svc, logg, svcReject)
}

type decisionKind int

const (
	svcApprove decisionKind = iota
	svcReject
)

func replenishmentDecision(svc replenishments.Service, logg *logger.Logger, kind decisionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replenishment service unavailable"))
			return
		}

		actor, err := replenishmentActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParseUUIDParam(chi.URLParam(r, "requestId"), "request_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload replenishmentDecisionRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		var decided any
		if kind == svcApprove {
			decided, err = svc.Approve(r.Context(), id, actor, payload.Notes)
		} else {
			decided, err = svc.Reject(r.Context(), id, actor, payload.Notes)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, decided)
	}
}

// ReplenishmentDelete withdraws a pending request.
func ReplenishmentDelete(svc replenishments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replenishment service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(chi.URLParam(r, "requestId"), "request_id")
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
