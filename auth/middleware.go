package auth

import (
	"net/http"

	"github.com/jonwraymond/tylolens/observe"
)

// UnauthorizedMessage is the body of a rejected request.
const UnauthorizedMessage = "Unauthorized. Provide ?token=... to access this demo."

// Middleware authenticates every request with a. A nil a lets every
// request through with AnonymousIdentity. Rejected requests get 401 with
// UnauthorizedMessage. A demo token accepted from the query is remembered
// in an HttpOnly cookie.
func Middleware(a Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), AnonymousIdentity())))
				return
			}

			req := RequestFromHTTP(r)
			result, err := a.Authenticate(r.Context(), req)
			if err != nil {
				logger.Error(r.Context(), "authentication error",
					observe.F("authenticator", a.Name()),
					observe.Err(err),
				)
				http.Error(w, "authentication unavailable", http.StatusInternalServerError)
				return
			}
			if !result.Authenticated {
				logger.Debug(r.Context(), "request rejected",
					observe.F("path", r.URL.Path),
					observe.F("method", result.Method),
					observe.Err(result.Error),
				)
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(UnauthorizedMessage))
				return
			}

			id := result.Identity
			if id.Method == AuthMethodDemoToken && id.Source() == "query" {
				http.SetCookie(w, &http.Cookie{
					Name:     DemoCookieName,
					Value:    req.GetQuery("token"),
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
