package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/leoyanggit/bonefish/stdlog"
	"github.com/leoyanggit/bonefish/transport/serialize"
	"github.com/leoyanggit/bonefish/wamp"
	"github.com/gorilla/websocket"
)

// websocketPeer implements the Peer interface, connecting the Send and Recv
// methods to a websocket.
type websocketPeer struct {
	conn        *websocket.Conn
	serializer  serialize.Serializer
	payloadType int

	// Used to signal the websocket is closed.
	closed chan struct{}

	// Channels communicate with router.
	rd chan wamp.Message
	wr chan wamp.Message

	cancelSender context.CancelFunc
	ctxSender    context.Context
	writerDone   chan struct{}

	metrics *Metrics

	log stdlog.StdLog
}

const (
	// WAMP uses the following WebSocket subprotocol identifiers for unbatched
	// modes.
	jsonWebsocketProtocol    = "wamp.2.json"
	msgpackWebsocketProtocol = "wamp.2.msgpack"

	defaultOutQueueSize = 160
	ctrlTimeout         = 5 * time.Second
)

type DialFunc func(network, addr string) (net.Conn, error)

// ConnectWebsocketPeer creates a new websocketPeer with the specified config,
// and connects it to the websocket server at the specified URL.
//
// outQueueSize is the maximum number of messages that can be queued to be
// written to the websocket. Once the queue has reached this limit, TrySend
// returns an error while Send blocks until there is room or the peer is
// closed. A value of < 1 uses the default size.
func ConnectWebsocketPeer(url string, serialization serialize.Serialization, tlsConfig *tls.Config, dial DialFunc, outQueueSize int, logger stdlog.StdLog) (wamp.Peer, error) {
	var (
		protocol    string
		payloadType int
		serializer  serialize.Serializer
	)

	switch serialization {
	case serialize.JSON:
		protocol = jsonWebsocketProtocol
		payloadType = websocket.TextMessage
		serializer = &serialize.JSONSerializer{}
	case serialize.MSGPACK:
		protocol = msgpackWebsocketProtocol
		payloadType = websocket.BinaryMessage
		serializer = &serialize.MessagePackSerializer{}
	default:
		return nil, fmt.Errorf("unsupported serialization: %v", serialization)
	}

	dialer := websocket.Dialer{
		Subprotocols:    []string{protocol},
		TLSClientConfig: tlsConfig,
		Proxy:           http.ProxyFromEnvironment,
		NetDial:         dial,
	}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return NewWebsocketPeer(conn, serializer, payloadType, outQueueSize, logger), nil
}

// NewWebsocketPeer creates a websocket peer from an existing websocket
// connection. This is used for handling clients connecting to the WAMP
// router.
func NewWebsocketPeer(conn *websocket.Conn, serializer serialize.Serializer, payloadType int, outQueueSize int, logger stdlog.StdLog) wamp.Peer {
	if outQueueSize < 1 {
		outQueueSize = defaultOutQueueSize
	}
	w := &websocketPeer{
		conn:        conn,
		serializer:  serializer,
		payloadType: payloadType,
		closed:      make(chan struct{}),
		writerDone:  make(chan struct{}),

		// Messages read from the websocket can be handled immediately, since
		// they have traveled over the websocket and the read channel does not
		// need to be more than size 1.
		rd: make(chan wamp.Message, 1),

		// The channel for messages being written to the websocket should be
		// large enough to prevent blocking while waiting for a slow websocket
		// to send messages.
		wr: make(chan wamp.Message, outQueueSize),

		metrics: NewMetrics("websocket"),

		log: logger,
	}
	w.ctxSender, w.cancelSender = context.WithCancel(context.Background())

	// Sending to and receiving from websocket is handled concurrently.
	go w.recvHandler()
	go w.sendHandler()

	return w
}

func (w *websocketPeer) Recv() <-chan wamp.Message { return w.rd }

func (w *websocketPeer) TrySend(msg wamp.Message) error {
	return wamp.TrySend(w.wr, msg)
}

func (w *websocketPeer) SendCtx(ctx context.Context, msg wamp.Message) error {
	return wamp.SendCtx(ctx, w.wr, msg)
}

func (w *websocketPeer) Send(msg wamp.Message) error {
	return wamp.SendCtx(w.ctxSender, w.wr, msg)
}

func (w *websocketPeer) Close() {
	w.cancelSender()
	<-w.writerDone

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "goodbye")
	err := w.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(ctrlTimeout))
	if err != nil {
		w.log.Println("error sending close message:", err)
	}
	close(w.closed)
	if err = w.conn.Close(); err != nil {
		w.log.Println("error closing connection:", err)
	}
}

// sendHandler pulls messages from the write channel, and pushes them to the
// websocket.
func (w *websocketPeer) sendHandler() {
	defer close(w.writerDone)
	defer w.cancelSender()

	senderDone := w.ctxSender.Done()
	for {
		select {
		case msg := <-w.wr:
			b, err := w.serializer.Serialize(msg)
			if err != nil {
				w.log.Println(err)
				continue
			}
			if err = w.conn.WriteMessage(w.payloadType, b); err != nil {
				if !wamp.IsGoodbyeAck(msg) {
					w.log.Println(err)
				}
				continue
			}
			w.metrics.CountOutgoing(len(b))
		case <-senderDone:
			return
		}
	}
}

// recvHandler pulls messages from the websocket and pushes them to the read
// channel.
func (w *websocketPeer) recvHandler() {
	for {
		msgType, b, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.closed:
				w.log.Println("peer connection closed")
			default:
				w.log.Println("error reading from peer:", err)
				w.conn.Close()
			}
			break
		}

		if msgType == websocket.CloseMessage {
			w.conn.Close()
			break
		}
		w.metrics.CountIncoming(len(b))

		msg, err := w.serializer.Deserialize(b)
		if err != nil {
			w.log.Println("error deserializing peer message:", err)
			continue
		}
		// It is OK for the router to block a client since routing should be
		// very quick compared to the time to transfer a message over the
		// websocket, and a blocked client will not block other clients.
		select {
		case w.rd <- msg:
		case <-w.closed:
			select {
			case w.rd <- msg:
			case <-time.After(time.Second):
				w.conn.Close()
				return
			}
		}
	}
	// Close read channel, cause router to remove session if not already.
	close(w.rd)
}
