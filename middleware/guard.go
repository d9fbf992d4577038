package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/keygate"
)

// Cookie names shared with the handlers that set them.
const (
	AdminCookieName   = "keygate_admin"
	SessionCookieName = "keygate_session"
)

type adminContextKey struct{}

type sessionContextKey struct{}

// UserSession is the validated user session injected by RequireSession.
type UserSession struct {
	Principal keygate.Principal
	Session   keygate.Session
}

// AdminFromContext returns the admin session injected by RequireAdmin.
func AdminFromContext(ctx context.Context) (*keygate.AdminSession, bool) {
	res, ok := ctx.Value(adminContextKey{}).(*keygate.AdminSession)
	return res, ok
}

// SessionFromContext returns the user session injected by RequireSession.
func SessionFromContext(ctx context.Context) (*UserSession, bool) {
	res, ok := ctx.Value(sessionContextKey{}).(*UserSession)
	return res, ok
}

// ErrorHandler writes the rejection response. err is ErrUnauthorized for
// missing or invalid cookies; anything else is an internal failure.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Option configures a guard.
type Option func(*guardOptions)

type guardOptions struct {
	onError ErrorHandler
}

// WithErrorHandler replaces the plain-text default rejection.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *guardOptions) {
		if fn != nil {
			o.onError = fn
		}
	}
}

func buildOptions(opts []Option) guardOptions {
	o := guardOptions{onError: defaultErrorHandler}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, keygate.ErrUnauthorized) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// RequireAdmin admits requests whose admin cookie names a live admin session.
func RequireAdmin(engine *keygate.Engine, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				o.onError(w, r, keygate.ErrUnauthorized)
				return
			}

			token, ok := cookieValue(r, AdminCookieName)
			if !ok {
				o.onError(w, r, keygate.ErrUnauthorized)
				return
			}

			res, err := engine.ValidateAdmin(r.Context(), token)
			if err != nil {
				o.onError(w, r, rejection(err))
				return
			}

			ctx := context.WithValue(r.Context(), adminContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession admits requests whose session cookie names a live user
// session of a registered principal.
func RequireSession(engine *keygate.Engine, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				o.onError(w, r, keygate.ErrUnauthorized)
				return
			}

			sid, ok := cookieValue(r, SessionCookieName)
			if !ok {
				o.onError(w, r, keygate.ErrUnauthorized)
				return
			}

			principal, sess, err := engine.SessionPrincipal(r.Context(), sid)
			if err != nil {
				o.onError(w, r, rejection(err))
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, &UserSession{
				Principal: *principal,
				Session:   *sess,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rejection keeps store failures distinguishable and folds every other
// validation error into ErrUnauthorized.
func rejection(err error) error {
	if keygate.Category(err) == keygate.CategoryInternal {
		return err
	}
	return keygate.ErrUnauthorized
}

func cookieValue(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
