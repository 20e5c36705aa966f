package middleware

import (
	"context"
	"net/http"

	"github.com/cantolico/guard/internal/authz"
	"github.com/cantolico/guard/internal/httputil"
	"github.com/cantolico/guard/internal/metrics"
	"github.com/cantolico/guard/internal/models"
	"github.com/cantolico/guard/pkg/tokens"
)

const identityKey contextKey = "identity"

// Auditor records authorization denials. Satisfied by audit.Writer.
type Auditor interface {
	Record(ctx context.Context, input *models.SecurityEventInput) *models.SecurityEvent
}

// Session resolves the caller's identity from a bearer token or the
// access_token cookie. An absent or invalid token is not an error here; the
// request proceeds anonymous and the route's guard decides.
func Session(tg *tokens.TokenGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				if cookie, err := r.Cookie("access_token"); err == nil {
					raw = cookie.Value
				}
			}
			if raw != "" {
				if claims, err := tg.ValidateAccessToken(raw); err == nil {
					ctx := context.WithValue(r.Context(), identityKey, claims.Identity())
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity returns the resolved identity, or nil for anonymous requests.
func GetIdentity(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityKey).(*models.Identity)
	return identity
}

// Guard wraps handlers with a role requirement. Denials are written to the
// security log before the response goes out.
type Guard struct {
	auditor Auditor
}

func NewGuard(auditor Auditor) *Guard {
	return &Guard{auditor: auditor}
}

// Require enforces the requirement on every request before the handler runs.
// A missing session yields 401, an insufficient role 403.
func (g *Guard) Require(requirement authz.Requirement, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r.Context())
		decision := authz.Authorize(identity, requirement)
		if decision.Allowed {
			next(w, r)
			return
		}

		g.deny(w, r, identity, requirement, decision.Reason)
	}
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request, identity *models.Identity, requirement authz.Requirement, reason authz.DenyReason) {
	metrics.AuthzDenials.WithLabelValues(string(reason)).Inc()

	if g.auditor != nil {
		input := &models.SecurityEventInput{
			IPAddress: httputil.GetClientIP(r),
			UserAgent: r.Header.Get("User-Agent"),
			Metadata: map[string]interface{}{
				"path":        r.URL.Path,
				"method":      r.Method,
				"requirement": requirement.String(),
			},
		}
		if identity == nil {
			input.EventType = models.EventUnauthorizedAccess
			input.Message = "unauthenticated request to " + r.URL.Path
		} else {
			input.EventType = models.EventForbiddenAccess
			input.Message = "insufficient role for " + r.URL.Path
			input.ActorID = &identity.ID
			input.Metadata["role"] = string(identity.Role)
		}
		g.auditor.Record(r.Context(), input)
	}

	if identity == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	httputil.WriteError(w, http.StatusForbidden, "insufficient permissions")
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
