package bonefish

import (
	"fmt"

	"github.com/leoyanggit/bonefish/stdlog"
	"github.com/leoyanggit/bonefish/wamp"
)

// brokerRole describes the features supported by this broker, for use as the
// "features" section of the broker role in a WELCOME message. Pattern-based
// subscription, publisher black/white listing, and the subscription meta API
// are not implemented; only exact topic matching, exclude_me, disclose_me,
// and acknowledge are supported.
var brokerRole = wamp.Dict{
	"features": wamp.Dict{
		"publisher_exclusion":      true,
		"publisher_identification": true,
	},
}

// Broker is the interface implemented by an object that handles routing
// EVENTS from Publishers to Subscribers.
type Broker interface {
	// Publish finds all subscriptions for the topic being published to and
	// sends an event to the subscribers of that topic.
	Publish(*wamp.Session, *wamp.Publish)

	// Subscribe subscribes the client to the given topic.
	//
	// In case of receiving a SUBSCRIBE message from the same Subscriber and
	// to an already subscribed topic, Broker answers with a SUBSCRIBED
	// message containing the existing Subscription|id.
	Subscribe(*wamp.Session, *wamp.Subscribe)

	// Unsubscribe removes the requested subscription.
	Unsubscribe(*wamp.Session, *wamp.Unsubscribe)

	// RemoveSession removes all subscriptions of the subscriber.
	RemoveSession(*wamp.Session)

	// Close shuts down the broker.
	Close()

	// Role returns the features supported by this broker.
	Role() wamp.Dict
}

type broker struct {
	// topic URI -> {subscription ID -> subscribed Session}
	topicSubscribers map[wamp.URI]map[wamp.ID]*wamp.Session

	// subscription ID -> topic URI
	subscriptions map[wamp.ID]wamp.URI

	// Session -> subscription ID set
	sessionSubIDSet map[*wamp.Session]map[wamp.ID]struct{}

	actionChan chan func()

	// Generate subscription IDs.
	idGen *wamp.IDGen

	strictURI     bool
	allowDisclose bool

	log   stdlog.StdLog
	debug bool
}

// NewBroker returns a new default broker implementation instance.
func NewBroker(logger stdlog.StdLog, strictURI, allowDisclose, debug bool) Broker {
	b := &broker{
		topicSubscribers: map[wamp.URI]map[wamp.ID]*wamp.Session{},
		subscriptions:    map[wamp.ID]wamp.URI{},
		sessionSubIDSet:  map[*wamp.Session]map[wamp.ID]struct{}{},

		// The action handler should be nearly always runnable, since it is
		// the critical section that does the only routing. So an unbuffered
		// channel is appropriate.
		actionChan: make(chan func()),

		idGen: wamp.NewIDGen(),

		strictURI:     strictURI,
		allowDisclose: allowDisclose,

		log:   logger,
		debug: debug,
	}
	go b.run()
	return b
}

// Role returns the features supported by this broker.
func (b *broker) Role() wamp.Dict {
	return brokerRole
}

// trySend delivers msg to sess without blocking the broker's action loop,
// the same non-blocking delivery the dealer uses: a full outbound queue
// drops the message and logs a warning instead of stalling fan-out to
// every other subscriber.
func (b *broker) trySend(sess *wamp.Session, msg wamp.Message) bool {
	if err := sess.TrySend(msg); err != nil {
		b.log.Printf("!!! Dropped %s to session %s: %s", msg.MessageType(), sess, err)
		return false
	}
	return true
}

// Publish publishes an event to subscribers.
func (b *broker) Publish(pub *wamp.Session, msg *wamp.Publish) {
	if pub == nil || msg == nil {
		panic("broker.Publish with nil session or message")
	}
	// Validate URI. For PUBLISH, must be valid URI (either strict or loose),
	// and all URI components must be non-empty.
	if !msg.Topic.ValidURI(b.strictURI, "") {
		opt, ok := msg.Options["acknowledge"]
		if !ok {
			return
		}
		if ack, ok := opt.(bool); ok && ack {
			errMsg := fmt.Sprintf(
				"publish with invalid topic URI %v (URI strict checking %v)",
				msg.Topic, b.strictURI)
			b.trySend(pub, &wamp.Error{
				Type:      msg.MessageType(),
				Request:   msg.Request,
				Error:     wamp.ErrInvalidURI,
				Arguments: wamp.List{errMsg},
			})
		}
		return
	}

	excludePub := true
	if exclude, ok := msg.Options["exclude_me"].(bool); ok {
		excludePub = exclude
	}

	var disclose bool
	if wamp.OptionFlag(msg.Options, "disclose_me") {
		// Broker MAY deny a publisher's request to disclose its identity.
		if !b.allowDisclose {
			b.trySend(pub, &wamp.Error{
				Type:    msg.MessageType(),
				Request: msg.Request,
				Details: wamp.Dict{},
				Error:   wamp.ErrOptionDisallowedDiscloseMe,
			})
			return
		}
		disclose = true
	}
	pubID := wamp.GlobalID()
	pubAck, _ := msg.Options["acknowledge"].(bool)
	b.actionChan <- func() {
		b.publish(pub, msg, pubID, excludePub, disclose)
		// Send Published message after the EVENT fan-out it triggers, so
		// that ordering is preserved when the publisher is also a
		// subscriber to its own topic.
		if pubAck {
			b.trySend(pub, &wamp.Published{Request: msg.Request, Publication: pubID})
		}
	}
}

// Subscribe subscribes the client to the given topic.
func (b *broker) Subscribe(sub *wamp.Session, msg *wamp.Subscribe) {
	if sub == nil || msg == nil {
		panic("broker.Subscribe with nil session or message")
	}
	// Validate topic URI. For SUBSCRIBE, must be valid URI (either strict or
	// loose), and all URI components must be non-empty; only exact matching
	// is supported.
	if !msg.Topic.ValidURI(b.strictURI, "") {
		errMsg := fmt.Sprintf(
			"subscribe for invalid topic URI %v (URI strict checking %v)",
			msg.Topic, b.strictURI)
		b.trySend(sub, &wamp.Error{
			Type:      msg.MessageType(),
			Request:   msg.Request,
			Error:     wamp.ErrInvalidURI,
			Arguments: wamp.List{errMsg},
		})
		return
	}

	b.actionChan <- func() {
		b.subscribe(sub, msg)
	}
}

// Unsubscribe removes the requested subscription.
func (b *broker) Unsubscribe(sub *wamp.Session, msg *wamp.Unsubscribe) {
	if sub == nil || msg == nil {
		panic("broker.Unsubscribe with nil session or message")
	}
	b.actionChan <- func() {
		b.unsubscribe(sub, msg)
	}
}

func (b *broker) RemoveSession(sess *wamp.Session) {
	if sess == nil {
		return
	}
	b.actionChan <- func() {
		b.removeSession(sess)
	}
}

// Close stops the broker's action loop. Actions already submitted still run;
// Close does not wait for the loop to exit.
func (b *broker) Close() {
	close(b.actionChan)
}

func (b *broker) run() {
	for action := range b.actionChan {
		action()
	}
	if b.debug {
		b.log.Print("Broker stopped")
	}
}

func (b *broker) publish(pub *wamp.Session, msg *wamp.Publish, pubID wamp.ID, excludePub, disclose bool) {
	subs := b.topicSubscribers[msg.Topic]
	b.pubEvent(pub, msg, pubID, subs, excludePub, disclose)
}

func (b *broker) subscribe(sub *wamp.Session, msg *wamp.Subscribe) {
	idSub, ok := b.topicSubscribers[msg.Topic]
	if !ok {
		idSub = map[wamp.ID]*wamp.Session{}
		b.topicSubscribers[msg.Topic] = idSub
	}

	// If the topic already has subscribers, then see if the session
	// requesting a subscription is already subscribed to the topic.
	if ok {
		for alreadyID, alreadySub := range idSub {
			if alreadySub == sub {
				// Already subscribed, send existing subscription ID.
				b.trySend(sub, &wamp.Subscribed{
					Request:      msg.Request,
					Subscription: alreadyID,
				})
				return
			}
		}
	}

	// Create a new subscription.
	id := b.idGen.Next()
	b.subscriptions[id] = msg.Topic
	idSub[id] = sub

	idSet, ok := b.sessionSubIDSet[sub]
	if !ok {
		idSet = map[wamp.ID]struct{}{}
		b.sessionSubIDSet[sub] = idSet
	}
	idSet[id] = struct{}{}

	// Tell sender the new subscription ID.
	b.trySend(sub, &wamp.Subscribed{Request: msg.Request, Subscription: id})
}

func (b *broker) unsubscribe(sub *wamp.Session, msg *wamp.Unsubscribe) {
	topic, ok := b.subscriptions[msg.Subscription]
	if ok && b.topicSubscribers[topic][msg.Subscription] != sub {
		// The subscription belongs to another session.
		ok = false
	}
	if !ok {
		err := &wamp.Error{
			Type:    msg.MessageType(),
			Request: msg.Request,
			Error:   wamp.ErrNoSuchSubscription,
		}
		b.trySend(sub, err)
		b.log.Println("Error unsubscribing: no such subscription",
			msg.Subscription)
		return
	}
	delete(b.subscriptions, msg.Subscription)

	// clean up topic -> subscribed session
	if subs, ok := b.topicSubscribers[topic]; !ok {
		b.log.Println("Error unsubscribing: unable to find subscribers for",
			topic, "topic")
	} else if _, ok := subs[msg.Subscription]; !ok {
		b.log.Println("Error unsubscribing: topic", topic,
			"does not have subscription", msg.Subscription)
	} else {
		delete(subs, msg.Subscription)
		if len(subs) == 0 {
			delete(b.topicSubscribers, topic)
		}
	}

	// clean up sender's subscription
	if s, ok := b.sessionSubIDSet[sub]; !ok {
		b.log.Print("Error unsubscribing: no subscriptions for sender")
	} else if _, ok := s[msg.Subscription]; !ok {
		b.log.Println("Error unsubscribing: cannot find subscription",
			msg.Subscription, "for sender")
	} else {
		delete(s, msg.Subscription)
		if len(s) == 0 {
			delete(b.sessionSubIDSet, sub)
		}
	}

	// Tell sender they are unsubscribed.
	b.trySend(sub, &wamp.Unsubscribed{Request: msg.Request})
}

func (b *broker) removeSession(sub *wamp.Session) {
	for id := range b.sessionSubIDSet[sub] {
		topic, ok := b.subscriptions[id]
		if !ok {
			continue
		}
		delete(b.subscriptions, id)

		if subs, ok := b.topicSubscribers[topic]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.topicSubscribers, topic)
			}
		}
	}
	delete(b.sessionSubIDSet, sub)
}

// pubEvent sends an event to all subscribers that are not excluded from
// receiving the event.
func (b *broker) pubEvent(pub *wamp.Session, msg *wamp.Publish, pubID wamp.ID, subs map[wamp.ID]*wamp.Session, excludePublisher, disclose bool) {
	for id, sub := range subs {
		// Do not send event to publisher.
		if sub == pub && excludePublisher {
			continue
		}

		details := wamp.Dict{}
		if disclose && sub.HasFeature("subscriber", "publisher_identification") {
			details["publisher"] = pub.ID
		}

		b.trySend(sub, &wamp.Event{
			Publication:  pubID,
			Subscription: id,
			Arguments:    msg.Arguments,
			ArgumentsKw:  msg.ArgumentsKw,
			Details:      details,
		})
	}
}
