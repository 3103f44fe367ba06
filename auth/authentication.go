/*
Package auth provides the interface the router uses to authenticate sessions
at HELLO time, and a default anonymous implementation. Authentication methods
beyond anonymous are left as hooks for callers to implement against this
interface; the router core does not ship challenge-response machinery.
*/
package auth

import (
	"github.com/leoyanggit/bonefish/wamp"
)

// Authenticator is implemented by a type that handles authentication using
// only the HELLO message.
type Authenticator interface {
	// Authenticate takes HELLO details and returns a WELCOME message if
	// successful, otherwise it returns an error.
	Authenticate(details map[string]interface{}, client wamp.Peer) (*wamp.Welcome, error)
}
