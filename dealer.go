package bonefish

import (
	"fmt"

	"github.com/leoyanggit/bonefish/stdlog"
	"github.com/leoyanggit/bonefish/wamp"
)

// dealerRole describes the features supported by this dealer, for use as the
// "features" section of the dealer role in a WELCOME message. Shared
// registrations, call cancellation, and progressive call results are not
// implemented; each procedure has at most one registration.
var dealerRole = wamp.Dict{
	"features": wamp.Dict{
		"caller_identification": true,
	},
}

// registration is a unique binding of a procedure URI to a callee session.
type registration struct {
	id        wamp.ID
	procedure wamp.URI
	callee    *wamp.Session
}

// callKey identifies a pending invocation by the caller session and the call
// request ID the caller used, for lookup on caller disconnect.
type callKey struct {
	caller  *wamp.Session
	request wamp.ID
}

// invocation is an in-flight CALL awaiting the callee's YIELD or ERROR.
type invocation struct {
	id           wamp.ID // invocation request ID, router scope
	callID       wamp.ID // call request ID, from caller
	caller       *wamp.Session
	callee       *wamp.Session
	registration wamp.ID
}

// Dealer is the interface implemented by an object that handles routing
// remote procedure calls from Callers to Callees.
type Dealer interface {
	// Register registers a procedure with the dealer.
	Register(*wamp.Session, *wamp.Register)

	// Unregister removes a procedure registered by the callee.
	Unregister(*wamp.Session, *wamp.Unregister)

	// Call invokes a registered procedure.
	Call(*wamp.Session, *wamp.Call)

	// Yield handles the result of a client call.
	Yield(*wamp.Session, *wamp.Yield)

	// Error handles an invocation error returned by a callee.
	Error(*wamp.Error)

	// RemoveSession removes all registrations and pending invocations that
	// involve this session, either as caller or as callee.
	RemoveSession(*wamp.Session)

	// Close shuts down the dealer.
	Close()

	// Role returns the features supported by this dealer.
	Role() wamp.Dict
}

type dealer struct {
	// procedure URI -> registration
	procRegMap map[wamp.URI]*registration

	// registration ID -> registration
	registrations map[wamp.ID]*registration

	// callee session -> set of registration IDs owned by that session
	calleeRegIDSet map[*wamp.Session]map[wamp.ID]struct{}

	// invocation request ID -> pending invocation
	invocationByID map[wamp.ID]*invocation

	// (caller session, call request ID) -> pending invocation
	invocationByCall map[callKey]*invocation

	actionChan chan func()

	// Generate registration and invocation IDs.
	idGen *wamp.IDGen

	strictURI bool

	log   stdlog.StdLog
	debug bool
}

// NewDealer returns a new default dealer implementation instance.
func NewDealer(logger stdlog.StdLog, strictURI, debug bool) Dealer {
	d := &dealer{
		procRegMap:       map[wamp.URI]*registration{},
		registrations:    map[wamp.ID]*registration{},
		calleeRegIDSet:   map[*wamp.Session]map[wamp.ID]struct{}{},
		invocationByID:   map[wamp.ID]*invocation{},
		invocationByCall: map[callKey]*invocation{},

		// The action handler should be nearly always runnable, since it is
		// the critical section that does the only routing. So an unbuffered
		// channel is appropriate.
		actionChan: make(chan func()),

		idGen: wamp.NewIDGen(),

		strictURI: strictURI,

		log:   logger,
		debug: debug,
	}
	go d.run()
	return d
}

// Role returns the features supported by this dealer.
func (d *dealer) Role() wamp.Dict {
	return dealerRole
}

// trySend delivers msg to sess without blocking the dealer's action loop. If
// the session's outbound queue is full, the message is dropped and logged
// rather than stalling dispatch to every other session.
func (d *dealer) trySend(sess *wamp.Session, msg wamp.Message) bool {
	if err := sess.TrySend(msg); err != nil {
		d.log.Printf("!!! Dropped %s to session %s: %s", msg.MessageType(), sess, err)
		return false
	}
	return true
}

// Register registers a callee to handle calls to a procedure.
func (d *dealer) Register(callee *wamp.Session, msg *wamp.Register) {
	if callee == nil || msg == nil {
		panic("dealer.Register with nil session or message")
	}
	if !msg.Procedure.ValidURI(d.strictURI, "") {
		errMsg := fmt.Sprintf(
			"register for invalid procedure URI %v (URI strict checking %v)",
			msg.Procedure, d.strictURI)
		d.trySend(callee, &wamp.Error{
			Type:      msg.MessageType(),
			Request:   msg.Request,
			Error:     wamp.ErrInvalidURI,
			Arguments: wamp.List{errMsg},
		})
		return
	}

	d.actionChan <- func() {
		d.register(callee, msg)
	}
}

func (d *dealer) register(callee *wamp.Session, msg *wamp.Register) {
	if _, ok := d.procRegMap[msg.Procedure]; ok {
		d.trySend(callee, &wamp.Error{
			Type:    msg.MessageType(),
			Request: msg.Request,
			Error:   wamp.ErrProcedureAlreadyExists,
		})
		return
	}

	id := d.idGen.Next()
	reg := &registration{
		id:        id,
		procedure: msg.Procedure,
		callee:    callee,
	}
	d.procRegMap[msg.Procedure] = reg
	d.registrations[id] = reg

	idSet, ok := d.calleeRegIDSet[callee]
	if !ok {
		idSet = map[wamp.ID]struct{}{}
		d.calleeRegIDSet[callee] = idSet
	}
	idSet[id] = struct{}{}

	d.trySend(callee, &wamp.Registered{Request: msg.Request, Registration: id})
}

// Unregister removes a procedure registered by the callee.
func (d *dealer) Unregister(callee *wamp.Session, msg *wamp.Unregister) {
	if callee == nil || msg == nil {
		panic("dealer.Unregister with nil session or message")
	}
	d.actionChan <- func() {
		d.unregister(callee, msg)
	}
}

func (d *dealer) unregister(callee *wamp.Session, msg *wamp.Unregister) {
	reg, ok := d.registrations[msg.Registration]
	if !ok || reg.callee != callee {
		d.trySend(callee, &wamp.Error{
			Type:    msg.MessageType(),
			Request: msg.Request,
			Error:   wamp.ErrNoSuchRegistration,
		})
		return
	}

	delete(d.registrations, msg.Registration)
	delete(d.procRegMap, reg.procedure)
	if idSet, ok := d.calleeRegIDSet[callee]; ok {
		delete(idSet, msg.Registration)
		if len(idSet) == 0 {
			delete(d.calleeRegIDSet, callee)
		}
	}

	d.trySend(callee, &wamp.Unregistered{Request: msg.Request})
}

// Call invokes a registered procedure, forwarding the CALL to the registered
// callee as an INVOCATION.
func (d *dealer) Call(caller *wamp.Session, msg *wamp.Call) {
	if caller == nil || msg == nil {
		panic("dealer.Call with nil session or message")
	}
	if !msg.Procedure.ValidURI(d.strictURI, "") {
		errMsg := fmt.Sprintf(
			"call for invalid procedure URI %v (URI strict checking %v)",
			msg.Procedure, d.strictURI)
		d.trySend(caller, &wamp.Error{
			Type:      msg.MessageType(),
			Request:   msg.Request,
			Error:     wamp.ErrInvalidURI,
			Arguments: wamp.List{errMsg},
		})
		return
	}

	d.actionChan <- func() {
		d.call(caller, msg)
	}
}

func (d *dealer) call(caller *wamp.Session, msg *wamp.Call) {
	reg, ok := d.procRegMap[msg.Procedure]
	if !ok {
		d.trySend(caller, &wamp.Error{
			Type:    msg.MessageType(),
			Request: msg.Request,
			Error:   wamp.ErrNoSuchProcedure,
		})
		return
	}

	invocationID := d.idGen.Next()
	inv := &invocation{
		id:           invocationID,
		callID:       msg.Request,
		caller:       caller,
		callee:       reg.callee,
		registration: reg.id,
	}
	d.invocationByID[invocationID] = inv
	d.invocationByCall[callKey{caller: caller, request: msg.Request}] = inv

	details := wamp.Dict{}
	if wamp.OptionFlag(msg.Options, "disclose_me") {
		details["caller"] = caller.ID
	}

	d.trySend(reg.callee, &wamp.Invocation{
		Request:      invocationID,
		Registration: reg.id,
		Details:      details,
		Arguments:    msg.Arguments,
		ArgumentsKw:  msg.ArgumentsKw,
	})
}

// Yield handles the result of a client call, forwarding it to the caller as a
// RESULT.
func (d *dealer) Yield(callee *wamp.Session, msg *wamp.Yield) {
	if callee == nil || msg == nil {
		panic("dealer.Yield with nil session or message")
	}
	d.actionChan <- func() {
		d.yield(callee, msg)
	}
}

func (d *dealer) yield(callee *wamp.Session, msg *wamp.Yield) {
	inv, ok := d.invocationByID[msg.Request]
	if !ok || inv.callee != callee {
		d.log.Println("Received YIELD for non-existent invocation from",
			callee)
		return
	}
	d.removePending(inv)

	d.trySend(inv.caller, &wamp.Result{
		Request:     inv.callID,
		Arguments:   msg.Arguments,
		ArgumentsKw: msg.ArgumentsKw,
	})
}

// Error handles an invocation error returned by a callee, forwarding it to
// the caller as an ERROR(CALL, ...).
func (d *dealer) Error(msg *wamp.Error) {
	if msg == nil {
		panic("dealer.Error with nil message")
	}
	d.actionChan <- func() {
		d.error(msg)
	}
}

func (d *dealer) error(msg *wamp.Error) {
	inv, ok := d.invocationByID[msg.Request]
	if !ok {
		d.log.Println("Received ERROR for non-existent invocation:", msg.Request)
		return
	}
	d.removePending(inv)

	d.trySend(inv.caller, &wamp.Error{
		Type:        wamp.CALL,
		Request:     inv.callID,
		Details:     msg.Details,
		Error:       msg.Error,
		Arguments:   msg.Arguments,
		ArgumentsKw: msg.ArgumentsKw,
	})
}

// removePending removes the pending-invocation record from both indices.
func (d *dealer) removePending(inv *invocation) {
	delete(d.invocationByID, inv.id)
	delete(d.invocationByCall, callKey{caller: inv.caller, request: inv.callID})
}

// RemoveSession removes all registrations and pending invocations that
// involve this session, either as caller or as callee.
func (d *dealer) RemoveSession(sess *wamp.Session) {
	if sess == nil {
		return
	}
	d.actionChan <- func() {
		d.removeSession(sess)
	}
}

func (d *dealer) removeSession(sess *wamp.Session) {
	// Remove registrations owned by this session as callee.
	for id := range d.calleeRegIDSet[sess] {
		reg, ok := d.registrations[id]
		if !ok {
			continue
		}
		delete(d.registrations, id)
		delete(d.procRegMap, reg.procedure)
	}
	delete(d.calleeRegIDSet, sess)

	// For every pending invocation targeting this session as callee,
	// synthesize an ERROR to the caller.
	for invID, inv := range d.invocationByID {
		if inv.callee == sess {
			delete(d.invocationByID, invID)
			delete(d.invocationByCall, callKey{caller: inv.caller, request: inv.callID})
			d.trySend(inv.caller, &wamp.Error{
				Type:    wamp.CALL,
				Request: inv.callID,
				Details: wamp.Dict{},
				Error:   wamp.ErrCanceled,
			})
		}
	}

	// For every pending invocation originated by this session as caller,
	// remove the pending record silently; a later YIELD/ERROR referring to
	// it is dropped since the invocation ID will no longer be found.
	for invID, inv := range d.invocationByID {
		if inv.caller == sess {
			delete(d.invocationByID, invID)
			delete(d.invocationByCall, callKey{caller: sess, request: inv.callID})
		}
	}
}

// Close stops the dealer's action loop. Actions already submitted still run;
// Close does not wait for the loop to exit.
func (d *dealer) Close() {
	close(d.actionChan)
}

func (d *dealer) run() {
	for action := range d.actionChan {
		action()
	}
	if d.debug {
		d.log.Print("Dealer stopped")
	}
}
