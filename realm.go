package bonefish

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leoyanggit/bonefish/auth"
	"github.com/leoyanggit/bonefish/stdlog"
	"github.com/leoyanggit/bonefish/wamp"
)

// RealmConfig configures a realm at router construction time.
type RealmConfig struct {
	URI            wamp.URI
	StrictURI      bool `json:"strict_uri"`
	AnonymousAuth  bool `json:"anonymous_auth"`
	AllowDisclose  bool `json:"allow_disclose"`
	Authenticators map[string]auth.Authenticator
	Authorizer     Authorizer
}

// A realm is a WAMP routing and administrative domain, optionally protected
// by authentication and authorization. WAMP messages are only routed within
// a realm.
type realm struct {
	broker Broker
	dealer Dealer

	authorizer Authorizer

	// authmethod -> Authenticator
	authenticators map[string]auth.Authenticator

	// session ID -> Session
	clients map[wamp.ID]*wamp.Session

	actionChan chan func()

	// Used by close() to wait for session handlers to exit.
	waitHandlers sync.WaitGroup

	closed    bool
	closeLock sync.Mutex

	log   stdlog.StdLog
	debug bool
}

// newRealm creates a new realm with the given broker, dealer, and authorizer
// implementations. The realm has no authenticators unless AnonymousAuth is
// set or Authenticators is populated.
func newRealm(config *RealmConfig, broker Broker, dealer Dealer, logger stdlog.StdLog, debug bool) (*realm, error) {
	if !config.URI.ValidURI(config.StrictURI, "") {
		return nil, fmt.Errorf(
			"invalid realm URI %v (URI strict checking %v)", config.URI, config.StrictURI)
	}

	r := &realm{
		broker:         broker,
		dealer:         dealer,
		authorizer:     config.Authorizer,
		authenticators: config.Authenticators,
		clients:        map[wamp.ID]*wamp.Session{},
		actionChan:     make(chan func()),
		log:            logger,
		debug:          debug,
	}

	if r.authorizer == nil {
		r.authorizer = NewAuthorizer()
	}

	if r.authenticators == nil {
		r.authenticators = map[string]auth.Authenticator{}
	}
	// If allowing anonymous authentication, then install the anonymous
	// authenticator. Install this first so that it is replaced in case a
	// custom anonymous authenticator is supplied.
	if config.AnonymousAuth {
		if _, ok := r.authenticators["anonymous"]; !ok {
			r.authenticators["anonymous"] = auth.AnonymousAuth
		}
	}

	return r, nil
}

// close performs an orderly shutdown of the realm.
//
// First a lock is acquired that prevents any new clients from joining the
// realm and makes sure any clients already in the process of joining finish
// joining.
//
// Next, each client session is killed, triggering a GOODBYE message to the
// client and causing the session's message handler to exit. The sessions are
// not removed from the broker and dealer one by one, since both are shut down
// next. This ensures there are no messages remaining to be sent to the
// router.
//
// At this point the broker and dealer can be shut down since they cannot
// receive any more messages to route, and have no clients to route messages
// to.
//
// Finally, the realm's action channel is closed and its goroutine is
// stopped.
func (r *realm) close() {
	r.closeLock.Lock()
	defer r.closeLock.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	r.actionChan <- func() {
		for _, client := range r.clients {
			client.Kill(&wamp.Goodbye{
				Reason:  wamp.ErrSystemShutdown,
				Details: wamp.Dict{},
			})
		}
	}

	// Wait until each client's handleInboundMessages() has exited. No new
	// messages can be generated once sessions are closed.
	r.waitHandlers.Wait()

	// handleInboundMessages() is the only thing that can submit requests to
	// the broker and dealer, so now that it has finished there can be no
	// more messages to broker and dealer.
	r.dealer.Close()
	r.broker.Close()

	close(r.actionChan)
}

// run must be called to start the realm. It blocks so should be executed in
// a separate goroutine.
func (r *realm) run() {
	for action := range r.actionChan {
		action()
	}
}

// onJoin is called when a session joins this realm. The session is stored in
// the realm's clients.
func (r *realm) onJoin(sess *wamp.Session) {
	r.waitHandlers.Add(1)
	sync := make(chan struct{})
	r.actionChan <- func() {
		r.clients[sess.ID] = sess
		close(sync)
	}
	<-sync
}

// onLeave is called when a session leaves this realm. The session is removed
// from the realm's clients, broker, and dealer.
//
// If the session handler exited due to realm shutdown, then the session is
// removed without also removing it from the broker and dealer individually;
// those will be closed shortly after all sessions have been removed.
func (r *realm) onLeave(sess *wamp.Session, shutdown bool) {
	sync := make(chan struct{})
	r.actionChan <- func() {
		delete(r.clients, sess.ID)
		if !shutdown {
			r.dealer.RemoveSession(sess)
			r.broker.RemoveSession(sess)
		}
		close(sync)
	}
	<-sync

	r.waitHandlers.Done()
}

// handleSession starts a session attached to this realm.
//
// Routing occurs only between WAMP sessions that have joined the same realm.
func (r *realm) handleSession(sess *wamp.Session) error {
	// The lock is held in mutual exclusion with the closing of the realm.
	// This ensures that no new session handler can start once the realm is
	// closing, during which the realm waits for all existing session
	// handlers to exit.
	r.closeLock.Lock()
	if r.closed {
		r.closeLock.Unlock()
		return errors.New("realm closed")
	}

	// Ensure session is capable of receiving exit signal before releasing
	// lock.
	r.onJoin(sess)
	r.closeLock.Unlock()

	if r.debug {
		r.log.Println("Started session", sess)
	}
	go func() {
		shutdown := r.handleInboundMessages(sess)
		r.onLeave(sess, shutdown)
		sess.Close()
	}()

	return nil
}

// handleInboundMessages handles the messages sent from a client session to
// the router.
func (r *realm) handleInboundMessages(sess *wamp.Session) bool {
	if r.debug {
		defer r.log.Println("Ended session", sess)
	}
	recvChan := sess.Recv()
	for {
		var msg wamp.Message
		var open bool
		select {
		case msg, open = <-recvChan:
			if !open {
				r.log.Println("Lost", sess)
				return false
			}
		case <-sess.Done():
			goodbye := sess.Goodbye()
			if r.debug {
				r.log.Printf("Stop session %s: %v", sess, goodbye.Reason)
			}
			sess.Send(goodbye)
			return goodbye.Reason == wamp.ErrSystemShutdown
		}

		if r.debug {
			r.log.Printf("Session %s submitting %s: %+v", sess,
				msg.MessageType(), msg)
		}

		if isAuthz, err := r.authorizer.Authorize(sess, msg); !isAuthz {
			errMsg := &wamp.Error{Type: msg.MessageType()}
			switch msg := msg.(type) {
			case *wamp.Publish:
				errMsg.Request = msg.Request
			case *wamp.Subscribe:
				errMsg.Request = msg.Request
			case *wamp.Unsubscribe:
				errMsg.Request = msg.Request
			case *wamp.Register:
				errMsg.Request = msg.Request
			case *wamp.Unregister:
				errMsg.Request = msg.Request
			case *wamp.Call:
				errMsg.Request = msg.Request
			case *wamp.Yield:
				errMsg.Request = msg.Request
			}
			if err != nil {
				errMsg.Error = wamp.ErrAuthorizationFailed
				errMsg.Arguments = wamp.List{err.Error()}
				r.log.Println("Client", sess, "authorization failed:", err)
			} else {
				errMsg.Error = wamp.ErrNotAuthorized
				r.log.Println("Client", sess, msg.MessageType(), "UNAUTHORIZED")
			}
			sess.Send(errMsg)
			continue
		}

		switch msg := msg.(type) {
		case *wamp.Publish:
			r.broker.Publish(sess, msg)
		case *wamp.Subscribe:
			r.broker.Subscribe(sess, msg)
		case *wamp.Unsubscribe:
			r.broker.Unsubscribe(sess, msg)

		case *wamp.Register:
			r.dealer.Register(sess, msg)
		case *wamp.Unregister:
			r.dealer.Unregister(sess, msg)
		case *wamp.Call:
			r.dealer.Call(sess, msg)
		case *wamp.Yield:
			r.dealer.Yield(sess, msg)

		case *wamp.Error:
			// An INVOCATION error is the only type of ERROR message the
			// router should receive.
			if msg.Type == wamp.INVOCATION {
				r.dealer.Error(msg)
			} else {
				r.log.Printf("Invalid ERROR received from session %v: %v",
					sess, msg)
			}

		case *wamp.Goodbye:
			sess.Send(&wamp.Goodbye{
				Reason:  wamp.ErrGoodbyeAndOut,
				Details: wamp.Dict{},
			})
			if r.debug {
				r.log.Println("GOODBYE from session", sess, "reason:",
					msg.Reason)
			}
			return false

		case *wamp.Hello:
			sess.Send(&wamp.Abort{
				Reason:  wamp.ErrProtocolViolation,
				Details: wamp.Dict{},
			})
			r.log.Println("Client", sess, "sent HELLO after session established, aborting")
			return false

		default:
			r.log.Println("Unhandled", msg.MessageType(), "from session", sess)
		}
	}
}

// authClient authenticates the client according to the authmethods in the
// HELLO message details and the authenticators available for this realm.
func (r *realm) authClient(client wamp.Peer, details wamp.Dict) (*wamp.Welcome, error) {
	var authmethods []string
	if _authmethods, ok := details["authmethods"]; ok {
		amList, _ := wamp.AsList(_authmethods)
		for _, x := range amList {
			am, ok := wamp.AsString(x)
			if !ok {
				r.log.Println("!! Could not convert authmethod:", x)
				continue
			}
			authmethods = append(authmethods, am)
		}
	}
	if len(authmethods) == 0 {
		return nil, errors.New("no authentication supplied")
	}

	authr, method := r.getAuthenticator(authmethods)
	if authr == nil {
		return nil, errors.New("could not authenticate with any method")
	}

	welcome, err := authr.Authenticate(details, client)
	if err != nil {
		return nil, err
	}
	welcome.Details["authmethod"] = method
	welcome.Details["roles"] = wamp.Dict{
		"broker": r.broker.Role(),
		"dealer": r.dealer.Role(),
	}
	return welcome, nil
}

// getAuthenticator finds the first authenticator registered for the methods.
func (r *realm) getAuthenticator(methods []string) (authr auth.Authenticator, authMethod string) {
	sync := make(chan struct{})
	r.actionChan <- func() {
		if len(r.authenticators) != 0 {
			for _, method := range methods {
				if a, ok := r.authenticators[method]; ok {
					authr = a
					authMethod = method
					break
				}
			}
		}
		close(sync)
	}
	<-sync
	return
}
