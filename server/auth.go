package server

import (
	"errors"
	"net/http"

	"github.com/lab1702/dicewars/game"
)

// ErrAnonymous is returned by an Authenticator that found no identity on
// the request (spec.md §4.F: anonymous connections are rejected).
var ErrAnonymous = errors.New("anonymous connection rejected")

// QueryParamAuthenticator is a minimal Authenticator for local
// development and tests: it trusts a `user` query parameter verbatim.
// Real deployments supply their own Authenticator backed by whatever
// session-cookie or token mechanism they use; verifying that token is
// explicitly out of scope here (spec.md §1).
type QueryParamAuthenticator struct{}

// Authenticate implements Authenticator.
func (QueryParamAuthenticator) Authenticate(r *http.Request) (game.PlayerID, error) {
	user := r.URL.Query().Get("user")
	if user == "" {
		return "", ErrAnonymous
	}
	return game.PlayerID(user), nil
}
