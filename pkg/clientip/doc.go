// Package clientip extracts the client's network identity from HTTP requests
// and hands it to the twofactor attempt log.
//
// GetIP checks CF-Connecting-IP, DO-Connecting-IP, X-Forwarded-For and
// X-Real-IP before falling back to RemoteAddr. Invalid values are skipped and
// valid ones are normalized with net.ParseIP.
//
// Middleware stores a twofactor.Source in the request context:
//
//	mux.Handle("/2fa/verify", clientip.Middleware(verifyHandler))
//
//	// inside verifyHandler
//	ok := svc.Verify(r.Context(), userID, code)
//
// Headers are trivially spoofed when the service is reachable without a
// proxy; use MiddlewareWithHeaders(nil) in that case.
package clientip
