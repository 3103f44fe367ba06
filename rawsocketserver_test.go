package bonefish

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"github.com/leoyanggit/bonefish/transport"
	"github.com/leoyanggit/bonefish/transport/serialize"
	"github.com/leoyanggit/bonefish/wamp"
)

func newTestRawSocketServer(t *testing.T) (*RawSocketServer, io.Closer, net.Addr) {
	t.Helper()
	r, err := NewRouter(newTestRouterConfig(), discardLog)
	if err != nil {
		t.Fatal(err)
	}

	s := NewRawSocketServer(r, 0, 0, 0)
	closer, err := s.ListenAndServe("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	return s, closer, closer.(net.Listener).Addr()
}

func TestRSHandshakeJSON(t *testing.T) {
	defer leaktest.Check(t)()
	s, closer, addr := newTestRawSocketServer(t)
	defer closer.Close()
	defer s.router.Close()

	client, err := transport.ConnectRawSocketPeer(context.Background(), "tcp",
		addr.String(), serialize.JSON, nil, discardLog, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	client.Send(&wamp.Hello{Realm: testRouterRealm, Details: wamp.Dict{
		"authmethods": wamp.List{"anonymous"},
	}})

	msg, err := wamp.RecvTimeout(client, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := msg.(*wamp.Welcome); !ok {
		t.Fatal("expected WELCOME, got", msg.MessageType())
	}
}

func TestRSHandshakeMsgpack(t *testing.T) {
	defer leaktest.Check(t)()
	s, closer, addr := newTestRawSocketServer(t)
	defer closer.Close()
	defer s.router.Close()

	client, err := transport.ConnectRawSocketPeer(context.Background(), "tcp",
		addr.String(), serialize.MSGPACK, nil, discardLog, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	client.Send(&wamp.Hello{Realm: testRouterRealm, Details: wamp.Dict{
		"authmethods": wamp.List{"anonymous"},
	}})

	msg, err := wamp.RecvTimeout(client, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := msg.(*wamp.Welcome); !ok {
		t.Fatalf("expected WELCOME, got %s: %+v", msg.MessageType(), msg)
	}
}

// TestRSBadHandshakeIllegalSerializer sends a handshake with serializer id 0
// (invalid). The server must reply with a handshake byte whose high nibble
// carries error code 0 (illegal serializer) and close the connection. No
// WAMP ABORT is sent; the connection fails at the transport level.
func TestRSBadHandshakeIllegalSerializer(t *testing.T) {
	defer leaktest.Check(t)()
	s, closer, addr := newTestRawSocketServer(t)
	defer closer.Close()
	defer s.router.Close()

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err = conn.Write([]byte{0x7f, 0x00, 0x00, 0x00}); err != nil {
		t.Fatal(err)
	}

	var reply [4]byte
	if _, err = io.ReadFull(conn, reply[:]); err != nil {
		t.Fatal(err)
	}
	if reply[0] != 0x7f {
		t.Fatalf("expected magic byte 0x7f in reply, got %#x", reply[0])
	}
	if errCode := reply[1] >> 4; errCode != 0 {
		t.Fatalf("expected error code 0 (illegal serializer), got %d", errCode)
	}

	// Connection should now be closed by the server; reading further should
	// yield EOF (or a reset), never a WAMP message.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err = conn.Read(buf); err == nil {
		t.Fatal("expected connection to be closed after bad handshake")
	}
}

// TestRSBadHandshakeReservedBits sends a handshake with non-zero reserved
// bytes. The server must reply with error code 2 (use of reserved bits).
func TestRSBadHandshakeReservedBits(t *testing.T) {
	defer leaktest.Check(t)()
	s, closer, addr := newTestRawSocketServer(t)
	defer closer.Close()
	defer s.router.Close()

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err = conn.Write([]byte{0x7f, 0x01, 0x01, 0x00}); err != nil {
		t.Fatal(err)
	}

	var reply [4]byte
	if _, err = io.ReadFull(conn, reply[:]); err != nil {
		t.Fatal(err)
	}
	if errCode := reply[1] >> 4; errCode != 2 {
		t.Fatalf("expected error code 2 (reserved bits), got %d", errCode)
	}
}

// TestRSZeroLengthPayloadClosesConnection verifies that a zero-length
// rawsocket message payload fails the connection without a WAMP ABORT, per
// the transport-level framing rule.
func TestRSZeroLengthPayloadClosesConnection(t *testing.T) {
	defer leaktest.Check(t)()
	s, closer, addr := newTestRawSocketServer(t)
	defer closer.Close()
	defer s.router.Close()

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Good handshake: MsgPack serializer, 512-byte max length.
	if _, err = conn.Write([]byte{0x7f, 0x01, 0x00, 0x00}); err != nil {
		t.Fatal(err)
	}
	var reply [4]byte
	if _, err = io.ReadFull(conn, reply[:]); err != nil {
		t.Fatal(err)
	}

	// Zero-length regular-message header.
	if _, err = conn.Write([]byte{0x00, 0x00, 0x00, 0x00}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err = conn.Read(buf); err == nil {
		t.Fatal("expected connection to be closed after zero-length payload")
	}
}
