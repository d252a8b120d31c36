package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "creditgate/pkg/domainerrors"
	"creditgate/pkg/platform/httputil"
	"creditgate/pkg/requestcontext"
)

// Claims carried by access tokens. Issuance happens in the identity
// platform; this service only verifies.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Verifier checks access token signatures and extracts the actor.
type Verifier struct {
	signingKey []byte
}

func NewVerifier(signingKey []byte) *Verifier {
	return &Verifier{signingKey: signingKey}
}

// Verify parses the token and returns the actor identity and role.
func (v *Verifier) Verify(tokenString string) (uuid.UUID, requestcontext.Role, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.signingKey, nil
	})
	if err != nil {
		return uuid.UUID{}, "", fmt.Errorf("parse token: %w", err)
	}
	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.UUID{}, "", fmt.Errorf("parse subject: %w", err)
	}
	role := requestcontext.Role(claims.Role)
	switch role {
	case requestcontext.RoleApplicant, requestcontext.RoleReviewer, requestcontext.RoleAdmin:
	case "":
		role = requestcontext.RoleApplicant
	default:
		return uuid.UUID{}, "", fmt.Errorf("unknown role %q", claims.Role)
	}
	return actorID, role, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// actor identity on the context.
func RequireAuth(verifier *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			actorID, role, err := verifier.Verify(token)
			if err != nil {
				logger.WarnContext(ctx, "rejected token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx = requestcontext.WithActorID(ctx, actorID)
			ctx = requestcontext.WithActorRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
