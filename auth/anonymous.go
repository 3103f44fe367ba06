package auth

import (
	"strconv"

	"github.com/leoyanggit/bonefish/wamp"
)

// anonymousAuth implements Authenticator interface.
type anonymousAuth struct{}

// AnonymousAuth is the static instance of anonymousAuth, used to enable anonymous
// authentication.
var AnonymousAuth Authenticator = &anonymousAuth{}

// Authenticate an anonymous client.  This always succeeds, and provides the
// authmethod and authrole for the WELCOME message.
func (a *anonymousAuth) Authenticate(details map[string]interface{}, client wamp.Peer) (*wamp.Welcome, error) {
	// Create welcome details containing auth info.
	welcomeDetails := map[string]interface{}{
		"authid":       strconv.FormatInt(int64(wamp.GlobalID()), 16),
		"authmethod":   "anonymous",
		"authrole":     "anonymous",
		"authprovider": "static",
	}
	return &wamp.Welcome{Details: welcomeDetails}, nil
}
