package bonefish

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"github.com/leoyanggit/bonefish/transport"
	"github.com/leoyanggit/bonefish/wamp"
)

const (
	testRouterRealm = wamp.URI("com.test.realm")
	testOtherRealm  = wamp.URI("com.test.other")
)

func newTestRouterConfig() *Config {
	return &Config{
		RealmConfigs: []*RealmConfig{
			{URI: testRouterRealm, AnonymousAuth: true},
		},
	}
}

func TestRouterHandshakeSuccess(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := NewRouter(newTestRouterConfig(), discardLog)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	client, server := transport.LinkedPeers()
	go client.Send(&wamp.Hello{Realm: testRouterRealm, Details: wamp.Dict{
		"authmethods": wamp.List{"anonymous"},
	}})

	if err := r.Attach(server); err != nil {
		t.Fatal(err)
	}

	msg, err := wamp.RecvTimeout(client, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	welcome, ok := msg.(*wamp.Welcome)
	if !ok {
		t.Fatalf("expected WELCOME, got %s", msg.MessageType())
	}
	if welcome.ID == 0 {
		t.Fatal("welcome missing session ID")
	}
}

func TestRouterHandshakeNoSuchRealm(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := NewRouter(newTestRouterConfig(), discardLog)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	client, server := transport.LinkedPeers()
	go client.Send(&wamp.Hello{Realm: testOtherRealm, Details: wamp.Dict{
		"authmethods": wamp.List{"anonymous"},
	}})

	if err := r.Attach(server); err == nil {
		t.Fatal("expected Attach to fail for unknown realm")
	}

	msg, err := wamp.RecvTimeout(client, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	abort, ok := msg.(*wamp.Abort)
	if !ok {
		t.Fatalf("expected ABORT, got %s", msg.MessageType())
	}
	if abort.Reason != wamp.ErrNoSuchRealm {
		t.Fatalf("expected no_such_realm reason, got %s", abort.Reason)
	}
}

func TestRouterHandshakeWrongFirstMessage(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := NewRouter(newTestRouterConfig(), discardLog)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	client, server := transport.LinkedPeers()
	go client.Send(&wamp.Goodbye{Reason: wamp.ErrCloseRealm, Details: wamp.Dict{}})

	if err := r.Attach(server); err == nil {
		t.Fatal("expected Attach to fail when first message is not HELLO")
	}
}

func TestRouterLocalClient(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := NewRouter(newTestRouterConfig(), discardLog)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	client, err := r.LocalClient(testRouterRealm, wamp.Dict{})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	testProcedure := wamp.URI("com.test.endpoint")
	if err := client.Send(&wamp.Register{Request: 1, Procedure: testProcedure}); err != nil {
		t.Fatal(err)
	}

	msg, err := wamp.RecvTimeout(client, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := msg.(*wamp.Registered); !ok {
		t.Fatalf("expected REGISTERED, got %s", msg.MessageType())
	}
}

func TestRouterLocalClientNoSuchRealm(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := NewRouter(newTestRouterConfig(), discardLog)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.LocalClient(testOtherRealm, wamp.Dict{}); err == nil {
		t.Fatal("expected error for unknown realm")
	}
}
