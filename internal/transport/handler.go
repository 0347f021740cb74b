package transport

import (
	"net/http"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// requireActor returns the authenticated caller or writes a 401
func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "missing identity")
		return domain.Actor{}, false
	}
	return actor, true
}

// pathUUID parses a chi URL parameter or writes a 400
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithDomainError(w, zap.NewNop(), domain.NewFieldError(name, "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses an optional UUID query parameter
func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domain.NewFieldError(name, "must be a UUID")
	}
	return &id, nil
}

// decode reads and validates a JSON body, writing the 400 itself on failure
func decode(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return false
	}
	return true
}

// queryOrForm reads an optional UUID from the form body, falling back to
// the query string
func queryOrForm(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domain.NewFieldError(name, "must be a UUID")
	}
	return &id, nil
}
