package testutil

import (
	"net/http"

	"aidtrace/pkg/domain"
	"aidtrace/pkg/requestcontext"
)

// WithCaller attaches identity the way auth.RequireCaller does. An identity
// that does not parse leaves the request anonymous, which handlers answer 401.
func WithCaller(req *http.Request, identity string) *http.Request {
	caller, err := domain.ParseIdentity(identity)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}
