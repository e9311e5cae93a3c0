// Package guard decides whether an inbound request carries a usable
// session token. Authenticate is pure: it reads headers and cookies and
// returns a Result, leaving transport concerns to the HTTP and gRPC adapters.
package guard

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/profolio/profolio/internal/common"
	"github.com/profolio/profolio/internal/server/auth"
)

// Reason explains why a request was rejected.
type Reason string

const (
	// ReasonMissingToken: neither an Authorization header nor a session cookie.
	ReasonMissingToken Reason = "missing_token"
	// ReasonMalformedHeader: an Authorization header not of the form "Bearer <token>".
	ReasonMalformedHeader Reason = "malformed_header"
	// ReasonInvalidToken: the token failed signature or claims verification.
	ReasonInvalidToken Reason = "invalid_token"
	// ReasonExpiredToken: a well-signed token past its expiry.
	ReasonExpiredToken Reason = "expired_token"
)

// Result is either Accepted with an identity or Rejected with a reason.
type Result struct {
	identity *auth.Identity
	reason   Reason
	demo     bool
}

// Accept returns an accepted Result for id.
func Accept(id auth.Identity) Result {
	return Result{identity: &id}
}

// Reject returns a rejected Result.
func Reject(r Reason) Result {
	return Result{reason: r}
}

// Accepted reports whether the request carried a usable token.
func (r Result) Accepted() bool { return r.identity != nil }

// Identity returns the accepted identity; ok is false for a rejection.
func (r Result) Identity() (auth.Identity, bool) {
	if r.identity == nil {
		return auth.Identity{}, false
	}
	return *r.identity, true
}

// Reason is empty for accepted results.
func (r Result) Reason() Reason { return r.reason }

// Demo reports whether the request was accepted through the demo token.
func (r Result) Demo() bool { return r.demo }

// Verifier checks a session token. *auth.Issuer implements it.
type Verifier interface {
	VerifyDetailed(token string) (*auth.Identity, error)
}

// DefaultDemoIdentity is used when demo mode is on and Options.DemoIdentity is empty.
var DefaultDemoIdentity = auth.Identity{UserID: "demo-user", Email: "demo@profolio.local"}

// Options configure a Guard. The demo token is only honoured when DemoEnabled is set.
type Options struct {
	DemoEnabled  bool
	DemoToken    string
	DemoIdentity auth.Identity
}

// Guard authenticates requests against session tokens and, when enabled,
// the demo token. It holds no per-request state and is safe for concurrent use.
type Guard struct {
	verifier Verifier
	demo     bool
	demoTok  []byte
	demoID   auth.Identity
}

// New returns a Guard backed by verifier.
func New(verifier Verifier, opts Options) *Guard {
	g := &Guard{verifier: verifier}
	if opts.DemoEnabled && opts.DemoToken != "" {
		g.demo = true
		g.demoTok = []byte(opts.DemoToken)
		g.demoID = opts.DemoIdentity
		if g.demoID.UserID == "" {
			g.demoID = DefaultDemoIdentity
		}
	}
	return g
}

// Authenticate resolves the request's identity. The Authorization header
// wins; the session cookie is consulted only when the header is absent.
func (g *Guard) Authenticate(headers http.Header, cookies []*http.Cookie) Result {
	token, reason := extractToken(headers, cookies)
	if reason != "" {
		return Reject(reason)
	}
	return g.AuthenticateToken(token)
}

// AuthenticateToken applies the demo check and signature verification to an
// already extracted token.
func (g *Guard) AuthenticateToken(token string) Result {
	if token == "" {
		return Reject(ReasonMissingToken)
	}

	if g.demo && subtle.ConstantTimeCompare([]byte(token), g.demoTok) == 1 {
		r := Accept(g.demoID)
		r.demo = true
		return r
	}

	id, err := g.verifier.VerifyDetailed(token)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return Reject(ReasonExpiredToken)
		}
		return Reject(ReasonInvalidToken)
	}
	return Accept(*id)
}

// BearerToken parses an Authorization header value. ok is false when the
// value is not of the form "Bearer <token>".
func BearerToken(header string) (token string, ok bool) {
	if !strings.HasPrefix(header, common.BearerPrefix) {
		return "", false
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
	return token, token != ""
}

func extractToken(headers http.Header, cookies []*http.Cookie) (string, Reason) {
	if h := strings.TrimSpace(headers.Get(common.AuthorizationHeaderName)); h != "" {
		token, ok := BearerToken(h)
		if !ok {
			return "", ReasonMalformedHeader
		}
		return token, ""
	}

	for _, c := range cookies {
		if c.Name == common.TokenCookieName && c.Value != "" {
			return c.Value, ""
		}
	}

	return "", ReasonMissingToken
}
