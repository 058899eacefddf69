package middleware

import (
	"fmt"
	"net/http"

	"rwandabill/models"
	"rwandabill/session"
	"rwandabill/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Paths the gate redirects to.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// IdentityKey is the gin context key holding the models.Identity of an
// allowed request.
const IdentityKey = "identity"

type requirementKind int

const (
	publicView requirementKind = iota
	authenticatedView
	roleView
)

// Requirement is the authorization requirement of a view.
type Requirement struct {
	kind requirementKind
	role models.Role
}

// Public views render for everyone.
var Public = Requirement{kind: publicView}

// RequireAuthentication admits any authenticated user.
func RequireAuthentication() Requirement {
	return Requirement{kind: authenticatedView}
}

// RequireRole admits authenticated users holding r.
func RequireRole(r models.Role) Requirement {
	return Requirement{kind: roleView, role: r}
}

func (r Requirement) String() string {
	switch r.kind {
	case authenticatedView:
		return "requires-authentication"
	case roleView:
		return "requires-role(" + string(r.role) + ")"
	default:
		return "public"
	}
}

// Decision is the outcome of a gate check.
type Decision int

const (
	Allow Decision = iota
	Loading
	RedirectLogin
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// Verdict is a Decision plus where to send the user and why.
type Verdict struct {
	Decision Decision
	Location string
	Reason   string
}

// Evaluate decides whether a view with requirement req may render for the
// session projection p. Unauthenticated users go to the login view; users
// holding the wrong role go to the unauthorized view. Nothing is decided
// while an exchange or identity load is in flight.
func Evaluate(req Requirement, p session.Projection) Verdict {
	if req.kind == publicView {
		return Verdict{Decision: Allow}
	}
	if p.Loading || p.IdentityPending {
		return Verdict{Decision: Loading, Reason: "session is loading"}
	}
	if !p.IsAuthenticated {
		return Verdict{Decision: RedirectLogin, Location: LoginPath, Reason: "not authenticated"}
	}
	if req.kind == roleView && p.Role != req.role {
		return Verdict{
			Decision: RedirectUnauthorized,
			Location: UnauthorizedPath,
			Reason:   fmt.Sprintf("role %q lacks %q", p.Role, req.role),
		}
	}
	return Verdict{Decision: Allow}
}

// IdentityLoader starts a background identity load for a restored token.
type IdentityLoader interface {
	EnsureIdentity()
}

// AccessGate guards a view. Redirects answer 303 so the protected view never
// becomes a history entry; the loading placeholder answers 503 with
// Retry-After.
func AccessGate(sess *session.Session, loader IdentityLoader, req Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := sess.Projection()
		if p.IdentityPending && !p.Loading && loader != nil {
			loader.EnsureIdentity()
		}

		v := Evaluate(req, p)
		utils.GateDecisions.WithLabelValues(v.Decision.String()).Inc()

		switch v.Decision {
		case Allow:
			if identity, ok := sess.Identity(); ok {
				c.Set(IdentityKey, identity)
			}
			c.Next()
		case Loading:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"loading": true,
				"message": "Loading your session...",
			})
		default:
			LoggerFrom(c).Info("access gate redirect",
				zap.String("path", c.Request.URL.Path),
				zap.String("requirement", req.String()),
				zap.String("decision", v.Decision.String()),
				zap.String("location", v.Location),
				zap.String("reason", v.Reason),
			)
			c.Redirect(http.StatusSeeOther, v.Location)
			c.Abort()
		}
	}
}

// CurrentIdentity returns the identity set by AccessGate.
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}
