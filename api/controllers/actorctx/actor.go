package actorctx

import (
	"net/http"

	"github.com/sensorgrid/devicehub-backend/api/middleware"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
)

// Resolve returns the authenticated caller or an Unauthorized error when the
// route was mounted without the auth middleware.
func Resolve(r *http.Request) (rbac.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return rbac.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}
