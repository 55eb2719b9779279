package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/mediconnect-backend/api/responses"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
)

const (
	ActorIDHeader   = "X-Actor-Id"
	ActorRoleHeader = "X-Actor-Role"
)

// Actor reads the caller identity set by the upstream gateway. Identity is
// opaque here; requests without it pass through and are rejected by the
// routes that need one.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := strings.TrimSpace(r.Header.Get(ActorIDHeader))
			rawRole := strings.TrimSpace(r.Header.Get(ActorRoleHeader))
			if actorID == "" && rawRole == "" {
				next.ServeHTTP(w, r)
				return
			}
			if actorID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor id header missing"))
				return
			}

			role, err := enums.ParseActorRole(rawRole)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor role missing or unknown"))
				return
			}

			ctx := WithActor(r.Context(), actorID, role)
			if logg != nil {
				ctx = logg.WithActor(ctx, actorID, role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActor rejects requests that carry no caller identity.
func RequireActor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ActorIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
