package controllers

import (
	"net/http"

	"github.com/pharmexa/pharmastock-backend/api/responses"
	"github.com/pharmexa/pharmastock-backend/api/validators"
	"github.com/pharmexa/pharmastock-backend/internal/users"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
)

// AuthLogin wires the login endpoint into the HTTP layer.
func AuthLogin(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body users.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
