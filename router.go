package bonefish

import (
	"errors"
	"sync"
	"time"

	"github.com/leoyanggit/bonefish/stdlog"
	"github.com/leoyanggit/bonefish/transport"
	"github.com/leoyanggit/bonefish/wamp"
)

// helloTimeout is how long the router waits for a HELLO after a transport
// connects before giving up on the handshake.
const helloTimeout = 5 * time.Second

// Router handles new Peers and routes requests to the requested Realm.
type Router interface {
	// Attach connects to the router and to the requested realm.
	Attach(wamp.Peer) error

	// Close shuts down the router and all realms.
	Close()

	// Logger returns the router's logger.
	Logger() stdlog.StdLog

	// LocalClient returns a wamp.Peer connected directly to the named realm,
	// bypassing any transport.
	LocalClient(realmURI wamp.URI, details wamp.Dict) (wamp.Peer, error)
}

// Config configures realms at router construction time. A router is
// constructed with a fixed set of realms; realms cannot be added or removed
// once the router is running.
type Config struct {
	RealmConfigs []*RealmConfig
	Debug        bool
}

type router struct {
	realms map[wamp.URI]*realm

	closed    bool
	closeLock sync.Mutex

	log   stdlog.StdLog
	debug bool
}

// NewRouter creates a router with realms configured from the given config.
func NewRouter(config *Config, logger stdlog.StdLog) (Router, error) {
	r := &router{
		realms: map[wamp.URI]*realm{},
		log:    logger,
		debug:  config.Debug,
	}

	for _, realmConfig := range config.RealmConfigs {
		if err := r.addRealm(realmConfig); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *router) addRealm(config *RealmConfig) error {
	if _, ok := r.realms[config.URI]; ok {
		return errors.New("realm already exists: " + string(config.URI))
	}

	broker := NewBroker(r.log, config.StrictURI, config.AllowDisclose, r.debug)
	dealer := NewDealer(r.log, config.StrictURI, r.debug)

	realm, err := newRealm(config, broker, dealer, r.log, r.debug)
	if err != nil {
		return err
	}
	go realm.run()

	r.realms[config.URI] = realm
	return nil
}

func (r *router) Logger() stdlog.StdLog { return r.log }

// Close stops the router and waits for all realms to stop.
func (r *router) Close() {
	r.closeLock.Lock()
	defer r.closeLock.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	var wg sync.WaitGroup
	for _, rlm := range r.realms {
		wg.Add(1)
		go func(rlm *realm) {
			rlm.close()
			wg.Done()
		}(rlm)
	}
	wg.Wait()
}

// Attach creates a session connected to the requested realm, then runs the
// HELLO/WELCOME handshake on it.
func (r *router) Attach(client wamp.Peer) error {
	sess, err := r.handshake(client)
	if err != nil {
		return err
	}
	if r.debug {
		r.log.Println("Established session", sess)
	}
	return nil
}

// handshake performs the HELLO/WELCOME/ABORT handshake for a newly connected
// peer and, on success, attaches the resulting session to its realm.
func (r *router) handshake(client wamp.Peer) (*wamp.Session, error) {
	msg, err := wamp.RecvTimeout(client, helloTimeout)
	if err != nil {
		client.Close()
		return nil, err
	}
	hello, ok := msg.(*wamp.Hello)
	if !ok {
		client.Send(&wamp.Abort{
			Reason:  wamp.ErrProtocolViolation,
			Details: wamp.Dict{},
		})
		client.Close()
		return nil, errors.New("expected HELLO, received " + msg.MessageType().String())
	}

	realm, err := r.getRealm(hello.Realm)
	if err != nil {
		client.Send(&wamp.Abort{
			Reason:  wamp.ErrNoSuchRealm,
			Details: wamp.Dict{},
		})
		client.Close()
		return nil, err
	}

	welcome, err := realm.authClient(client, hello.Details)
	if err != nil {
		client.Send(&wamp.Abort{
			Reason:  wamp.ErrAuthenticationFailed,
			Details: wamp.Dict{"error": err.Error()},
		})
		client.Close()
		return nil, err
	}

	sessID := wamp.GlobalID()
	welcome.ID = sessID

	sess := &wamp.Session{
		Peer:    client,
		ID:      sessID,
		Realm:   hello.Realm,
		Details: wamp.NormalizeDict(hello.Details),
	}
	if authid, _ := wamp.AsString(welcome.Details["authid"]); authid != "" {
		sess.AuthID = authid
	}
	if authrole, _ := wamp.AsString(welcome.Details["authrole"]); authrole != "" {
		sess.AuthRole = authrole
	}

	if err = realm.handleSession(sess); err != nil {
		client.Send(&wamp.Abort{
			Reason:  wamp.ErrNoSuchRealm,
			Details: wamp.Dict{},
		})
		client.Close()
		return nil, err
	}

	if err = client.Send(welcome); err != nil {
		return nil, err
	}

	return sess, nil
}

func (r *router) getRealm(uri wamp.URI) (*realm, error) {
	realm, ok := r.realms[uri]
	if !ok {
		return nil, errors.New("no such realm: " + string(uri))
	}
	return realm, nil
}

// LocalClient returns a wamp.Peer connected directly to the named realm,
// bypassing any transport. This is used to build router-internal clients,
// such as administrative tools, without going over the network.
func (r *router) LocalClient(realmURI wamp.URI, details wamp.Dict) (wamp.Peer, error) {
	realm, err := r.getRealm(realmURI)
	if err != nil {
		return nil, err
	}

	client, rtr := transport.LinkedPeers()

	sess := &wamp.Session{
		Peer:    rtr,
		ID:      wamp.GlobalID(),
		Realm:   realmURI,
		Details: details,
	}

	if err = realm.handleSession(sess); err != nil {
		return nil, err
	}

	return client, nil
}
