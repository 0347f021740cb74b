package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"dpp-certification/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const actorKey contextKey = "actor"

var errInvalidClaims = errors.New("invalid token claims")

// AuthMiddleware validates JWT tokens and resolves the caller into a
// domain.Actor. Tokens are issued elsewhere; this service only verifies them.
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, jwt.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}
			if !token.Valid {
				logger.Debug("Invalid token")
				RespondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				logger.Error("Failed to extract claims from token")
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			actor, err := actorFromClaims(claims)
			if err != nil {
				logger.Warn("Rejected token claims", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			logger.Debug("User authenticated",
				zap.String("user_id", actor.UserID.String()),
				zap.String("company_id", actor.CompanyID.String()),
				zap.String("role", string(actor.Role)),
			)

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func actorFromClaims(claims jwt.MapClaims) (domain.Actor, error) {
	userID, err := uuidClaim(claims, "user_id")
	if err != nil {
		return domain.Actor{}, err
	}
	companyID, err := uuidClaim(claims, "company_id")
	if err != nil {
		return domain.Actor{}, err
	}
	raw, ok := claims["role"].(string)
	if !ok {
		return domain.Actor{}, errInvalidClaims
	}
	role := domain.Role(raw)
	if !role.Valid() {
		return domain.Actor{}, errInvalidClaims
	}
	return domain.Actor{UserID: userID, CompanyID: companyID, Role: role}, nil
}

func uuidClaim(claims jwt.MapClaims, name string) (uuid.UUID, error) {
	raw, ok := claims[name].(string)
	if !ok {
		return uuid.Nil, errInvalidClaims
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errInvalidClaims
	}
	return id, nil
}

// WithActor stores the authenticated caller in ctx
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the caller resolved by AuthMiddleware
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return "", false
	}
	return actor.UserID.String(), true
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (domain.Role, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return "", false
	}
	return actor.Role, true
}
