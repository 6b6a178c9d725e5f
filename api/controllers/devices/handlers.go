package devices

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/api/controllers/actorctx"
	"github.com/sensorgrid/devicehub-backend/api/responses"
	"github.com/sensorgrid/devicehub-backend/api/validators"
	"github.com/sensorgrid/devicehub-backend/internal/devices"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
)

const maxNameLen = 100

type createRequest struct {
	Code       string  `json:"device_code" validate:"required,devicecode"`
	Name       string  `json:"device_name" validate:"required,max=100"`
	AssignedTo *string `json:"assigned_to" validate:"omitempty,uuid"`
}

type bulkRequest struct {
	Count int `json:"count"`
}

type claimRequest struct {
	Code string  `json:"device_code" validate:"required,devicecode"`
	Name *string `json:"device_name" validate:"omitempty,max=100"`
}

type reassignRequest struct {
	AssignedTo *string `json:"assigned_to" validate:"omitempty,uuid"`
}

type m2mRequest struct {
	Number string `json:"m2m_number" validate:"required,max=32"`
}

func Create(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owner, err := optionalUUID(body.AssignedTo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		device, err := svc.Create(r.Context(), actor, devices.CreateInput{
			Code:    body.Code,
			Name:    validators.SanitizeString(body.Name, maxNameLen),
			OwnerID: owner,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, device)
	}
}

// GenerateBulk leaves count validation to the service so the bounds error
// carries the domain message.
func GenerateBulk(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body bulkRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.GenerateBulk(r.Context(), actor, body.Count)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func List(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Mine lists the caller's own devices.
func Mine(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListOwned(r.Context(), actor, actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func Owned(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseUUIDParam(r, "userID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListOwned(r.Context(), actor, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func Claim(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body claimRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithDeviceCode(r.Context(), body.Code)
		device, err := svc.Claim(ctx, actor, body.Code, validators.OptionalString(body.Name, maxNameLen))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, device)
	}
}

func Get(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, code, err := actorAndCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		device, err := svc.Get(r.Context(), actor, code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, device)
	}
}

// Reassign sets or clears the owner. A null or missing assigned_to unassigns.
func Reassign(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, code, err := actorAndCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body reassignRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owner, err := optionalUUID(body.AssignedTo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithDeviceCode(r.Context(), code)
		device, err := svc.Reassign(ctx, actor, code, owner)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, device)
	}
}

func UpdateM2M(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, code, err := actorAndCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body m2mRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		device, err := svc.UpdateM2M(r.Context(), actor, code, validators.SanitizeString(body.Number, 32))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, device)
	}
}

func Delete(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, code, err := actorAndCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithDeviceCode(r.Context(), code)
		if err := svc.Delete(ctx, actor, code); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "device deleted"})
	}
}

func QRCode(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, code, err := actorAndCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		png, err := svc.QRImage(r.Context(), actor, code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Content-Disposition", `inline; filename="`+code+`.png"`)
		responses.WritePNG(w, png)
	}
}

func actorAndCode(r *http.Request) (rbac.Actor, string, error) {
	actor, err := actorctx.Resolve(r)
	if err != nil {
		return actor, "", err
	}
	code, err := validators.DeviceCodeParam(r)
	if err != nil {
		return actor, "", err
	}
	return actor, code, nil
}

func optionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assigned_to must be a user id")
	}
	return &id, nil
}
