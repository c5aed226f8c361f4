package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"backoffice/internal/requestctx"
	"backoffice/internal/transport/http/api"
)

// ActorClaims are issued by the login service; sub is the actor ID.
type ActorClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func ParseActorToken(secret, tokenString string) (requestctx.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return requestctx.Actor{}, err
	}
	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return requestctx.Actor{}, errors.New("invalid token")
	}
	return requestctx.Actor{ID: claims.Subject, Name: claims.Name}, nil
}

// Actor attaches the bearer token's actor to the context. Requests without a
// valid token pass through anonymous.
func Actor(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			authHeader := r.Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}
			actor, err := ParseActorToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithActor(r.Context(), actor)))
		})
	}
}

func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetActor(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActorWhen applies RequireActor when secret is configured and passes
// requests through otherwise.
func RequireActorWhen(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	return RequireActor
}

func GetActor(ctx context.Context) (requestctx.Actor, bool) {
	return requestctx.GetActor(ctx)
}
