package bonefish

import (
	"testing"
	"time"

	"github.com/leoyanggit/bonefish/wamp"
)

const testRealmURI = wamp.URI("com.test.realm")

func newTestRealm(t *testing.T, anonymousAuth bool) *realm {
	t.Helper()
	broker := NewBroker(discardLog, false, true, false)
	dealer := NewDealer(discardLog, false, false)
	r, err := newRealm(&RealmConfig{
		URI:           testRealmURI,
		AnonymousAuth: anonymousAuth,
	}, broker, dealer, discardLog, false)
	if err != nil {
		t.Fatal(err)
	}
	go r.run()
	return r
}

func TestRealmAuthClientAnonymous(t *testing.T) {
	r := newTestRealm(t, true)
	defer r.close()

	welcome, err := r.authClient(newTestPeer(), wamp.Dict{
		"authmethods": wamp.List{"anonymous"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if welcome.Details["authmethod"] != "anonymous" {
		t.Fatal("expected anonymous authmethod in welcome details")
	}
	roles, ok := welcome.Details["roles"].(wamp.Dict)
	if !ok {
		t.Fatal("welcome details missing roles")
	}
	if _, ok := roles["broker"]; !ok {
		t.Fatal("welcome roles missing broker")
	}
	if _, ok := roles["dealer"]; !ok {
		t.Fatal("welcome roles missing dealer")
	}
}

func TestRealmAuthClientNoMethod(t *testing.T) {
	r := newTestRealm(t, false)
	defer r.close()

	_, err := r.authClient(newTestPeer(), wamp.Dict{
		"authmethods": wamp.List{"anonymous"},
	})
	if err == nil {
		t.Fatal("expected authentication failure when no authenticator is configured")
	}
}

func TestRealmJoinLeave(t *testing.T) {
	r := newTestRealm(t, true)
	defer r.close()

	sess := &wamp.Session{ID: wamp.GlobalID(), Peer: newTestPeer(), Realm: testRealmURI}
	if err := r.handleSession(sess); err != nil {
		t.Fatal(err)
	}

	// Give handleInboundMessages a moment to start and register the join.
	time.Sleep(10 * time.Millisecond)

	sync := make(chan struct{})
	present := false
	r.actionChan <- func() {
		_, present = r.clients[sess.ID]
		close(sync)
	}
	<-sync
	if !present {
		t.Fatal("session was not added to realm's client set")
	}

	sess.Kill(&wamp.Goodbye{Reason: wamp.ErrCloseRealm, Details: wamp.Dict{}})

	// handleSession's goroutine removes the session from the realm on exit.
	deadline := time.After(time.Second)
	for {
		sync := make(chan struct{})
		r.actionChan <- func() {
			_, present = r.clients[sess.ID]
			close(sync)
		}
		<-sync
		if !present {
			break
		}
		select {
		case <-deadline:
			t.Fatal("session was not removed from realm after Kill")
		case <-time.After(time.Millisecond):
		}
	}
}
