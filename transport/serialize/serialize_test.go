package serialize

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/leoyanggit/bonefish/wamp"
)

func detailRolesFeatures() wamp.Dict {
	return wamp.Dict{
		"roles": wamp.Dict{
			"publisher": wamp.Dict{
				"features": wamp.Dict{
					"publisher_exclusion": true,
				},
			},
			"subscriber": wamp.Dict{},
			"callee":     wamp.Dict{},
			"caller":     wamp.Dict{},
		},
	}
}

func hasFeature(details wamp.Dict, role, feature string) bool {
	b, _ := wamp.DictFlag(details, []string{"roles", role, "features", feature})
	return b
}

func TestJSONSerialize(t *testing.T) {
	details := detailRolesFeatures()
	hello := &wamp.Hello{Realm: "bonefish.realm", Details: details}

	s := &JSONSerializer{}
	b, err := s.Serialize(hello)
	if err != nil {
		t.Fatal("Serialization error: ", err)
	}
	if len(b) == 0 {
		t.Fatal("no serialized data")
	}

	msg, err := s.Deserialize(b)
	if err != nil {
		t.Fatal("deserialization error: ", err)
	}
	if msg.MessageType() != wamp.HELLO {
		t.Fatal("deserialized to wrong message type: ", msg.MessageType())
	}
	if !hasFeature(msg.(*wamp.Hello).Details, "publisher", "publisher_exclusion") {
		t.Fatal("did not deserialize message details")
	}
}

func TestJSONDeserialize(t *testing.T) {
	s := &JSONSerializer{}

	data := `[1,"bonefish.realm",{}]`
	expect := &wamp.Hello{Realm: "bonefish.realm", Details: wamp.Dict{}}
	msg, err := s.Deserialize([]byte(data))
	if err != nil {
		t.Fatalf("Error decoding good data: %s, %s", err, data)
	}
	if msg.MessageType() != expect.MessageType() {
		t.Fatalf("Incorrect message type: have %s, want %s", msg.MessageType(),
			expect.MessageType())
	}
	if !reflect.DeepEqual(msg, expect) {
		t.Fatalf("got %+v, expected %+v", msg, expect)
	}
}

func TestJSONDeserializeUnknownType(t *testing.T) {
	s := &JSONSerializer{}
	_, err := s.Deserialize([]byte(`[255,"bonefish.realm",{}]`))
	if err == nil {
		t.Fatal("expected error deserializing unknown message type")
	}
}

func TestMessagePackSerialize(t *testing.T) {
	hello := &wamp.Hello{Realm: "bonefish.realm", Details: detailRolesFeatures()}

	s := &MessagePackSerializer{}
	b, err := s.Serialize(hello)
	if err != nil {
		t.Fatal("Serialization error: ", err)
	}
	if len(b) == 0 {
		t.Fatal("no serialized data")
	}
	msg, err := s.Deserialize(b)
	if err != nil {
		t.Fatal("deserialization error: ", err)
	}
	if msg.MessageType() != wamp.HELLO {
		t.Fatal("deserialized to wrong message type: ", msg.MessageType())
	}
	if !hasFeature(msg.(*wamp.Hello).Details, "publisher", "publisher_exclusion") {
		t.Fatal("did not deserialize message details")
	}
}

func TestMessagePackRoundTrip(t *testing.T) {
	s := &MessagePackSerializer{}

	orig := &wamp.Call{
		Request:     42,
		Options:     wamp.Dict{},
		Procedure:   "com.test.add",
		Arguments:   wamp.List{int64(2), int64(3)},
		ArgumentsKw: wamp.Dict{"extra": "value"},
	}
	b, err := s.Serialize(orig)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := s.Deserialize(b)
	if err != nil {
		t.Fatal(err)
	}
	call, ok := msg.(*wamp.Call)
	if !ok {
		t.Fatalf("expected *wamp.Call, got %T", msg)
	}
	if call.Request != orig.Request || call.Procedure != orig.Procedure {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", call, orig)
	}
	if len(call.Arguments) != len(orig.Arguments) {
		t.Fatalf("round-trip lost arguments: got %v, want %v", call.Arguments, orig.Arguments)
	}
}

func TestMessagePackDeserializeUnknownType(t *testing.T) {
	s := &MessagePackSerializer{}
	// [999] as a msgpack array containing an out-of-range message type.
	_, err := s.Deserialize([]byte{0x91, 0xcd, 0x03, 0xe7})
	if err == nil {
		t.Fatal("expected error deserializing unknown message type")
	}
}

func TestBinaryData(t *testing.T) {
	orig := []byte("hellowamp")

	bin, err := json.Marshal(BinaryData(orig))
	if err != nil {
		t.Fatal("Error marshalling BinaryData: ", err)
	}

	quote := "\""
	expect := quote + "\\u0000" + base64.StdEncoding.EncodeToString(orig) + quote
	if !bytes.Equal([]byte(expect), bin) {
		t.Fatalf("got %s, expected %s", string(bin), expect)
	}

	var b BinaryData
	err = json.Unmarshal(bin, &b)
	if err != nil {
		t.Fatal("Error unmarshalling marshalled BinaryData: ", err)
	}
	if !bytes.Equal([]byte(b), orig) {
		t.Fatalf("got %s, expected %s", string(b), string(orig))
	}
}

func TestAssignSlice(t *testing.T) {
	const msgType = wamp.PUBLISH

	pubArgs := []string{"hello", "bonefish", "wamp", "router"}

	elems := []interface{}{msgType, int64(123), wamp.Dict{},
		"some.valid.topic", pubArgs}
	msg, err := listToMsg(msgType, elems)
	if err != nil {
		t.Fatal(err)
	}

	pubMsg, ok := msg.(*wamp.Publish)
	if !ok {
		t.Fatal("got incorrect message type:", msg.MessageType())
	}

	if len(pubMsg.Arguments) != len(pubArgs) {
		t.Fatal("wrong number of message arguments")
	}
	for i := 0; i < len(pubArgs); i++ {
		if pubMsg.Arguments[i] != pubArgs[i] {
			t.Fatalf("argument %d has wrong value", i)
		}
	}
}

func TestMsgToList(t *testing.T) {
	testMsgToList := func(args wamp.List, kwArgs wamp.Dict, omit int, message string) error {
		msg := &wamp.Event{Subscription: 0, Publication: 0, Details: nil, Arguments: args, ArgumentsKw: kwArgs}
		numField := reflect.ValueOf(msg).Elem().NumField() + 1 // +1 for type
		expect := numField - omit
		list := msgToList(msg)
		if len(list) != expect {
			return fmt.Errorf(
				"wrong number of fields: got %d, expected %d, for %s",
				len(list), expect, message)
		}
		return nil
	}

	cases := []struct {
		args    wamp.List
		kwArgs  wamp.Dict
		omit    int
		message string
	}{
		{nil, nil, 2, "nil args, nil kwArgs"},
		{wamp.List{}, wamp.Dict{}, 2, "empty args, empty kwArgs"},
		{wamp.List{1}, nil, 1, "non-empty args, nil kwArgs"},
		{nil, wamp.Dict{"a": nil}, 0, "nil args, non-empty kwArgs"},
		{wamp.List{1}, wamp.Dict{}, 1, "non-empty args, empty kwArgs"},
		{wamp.List{}, wamp.Dict{"a": nil}, 0, "empty args, non-empty kwArgs"},
		{wamp.List{1}, wamp.Dict{"a": nil}, 0, "non-empty args, non-empty kwArgs"},
	}
	for _, c := range cases {
		if err := testMsgToList(c.args, c.kwArgs, c.omit, c.message); err != nil {
			t.Error(err.Error())
		}
	}
}
