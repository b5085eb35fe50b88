package clientip

import (
	"net/http"

	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

// maxUserAgent bounds the stored User-Agent header.
const maxUserAgent = 512

// Middleware attaches a twofactor.Source built from the request to its context,
// so attempts recorded by Service.Verify carry the caller's IP and User-Agent.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareWithHeaders(DefaultHeaders)(next)
}

// MiddlewareWithHeaders is Middleware with a custom list of trusted IP headers.
// An empty list uses RemoteAddr only.
func MiddlewareWithHeaders(headers []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := twofactor.WithSource(r.Context(), SourceFromRequest(r, headers))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SourceFromRequest extracts the attempt source from r.
func SourceFromRequest(r *http.Request, headers []string) twofactor.Source {
	ua := r.UserAgent()
	if len(ua) > maxUserAgent {
		ua = ua[:maxUserAgent]
	}
	return twofactor.Source{
		IP:        FromHeaders(r, headers),
		UserAgent: ua,
	}
}
