package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sensorgrid/devicehub-backend/api/controllers/actorctx"
	"github.com/sensorgrid/devicehub-backend/api/responses"
	"github.com/sensorgrid/devicehub-backend/api/validators"
	"github.com/sensorgrid/devicehub-backend/internal/telemetry"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/pagination"
)

type recordRequest struct {
	Pressure1   *float64   `json:"pressure1"`
	Pressure2   *float64   `json:"pressure2"`
	Temperature *float64   `json:"temperature"`
	Distance    *float64   `json:"distance"`
	RecordedAt  *time.Time `json:"recorded_at"`
}

// List serves one series for a device. ?limit is clamped to the telemetry bounds.
func List(svc telemetry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deviceID, err := validators.ParseUUIDParam(r, "deviceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseReadingKind(chi.URLParam(r, "kind"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown reading kind"))
			return
		}
		limit, err := pagination.ParseLimit(r.URL.Query().Get("limit"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid limit"))
			return
		}

		points, err := svc.List(r.Context(), actor, deviceID, kind, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, points)
	}
}

func Latest(svc telemetry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deviceID, err := validators.ParseUUIDParam(r, "deviceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		latest, err := svc.Latest(r.Context(), actor, deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, latest)
	}
}

func Record(svc telemetry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deviceID, err := validators.ParseUUIDParam(r, "deviceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body recordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Record(r.Context(), actor, deviceID, telemetry.ReadingInput{
			Pressure1:   body.Pressure1,
			Pressure2:   body.Pressure2,
			Temperature: body.Temperature,
			Distance:    body.Distance,
			RecordedAt:  body.RecordedAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
