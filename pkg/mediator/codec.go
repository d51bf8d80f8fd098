package mediator

import (
	"bytes"
	"mime"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/msgpack"
)

// Codec encodes request and response bodies.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonCodec struct{}

func (jsonCodec) ContentType() string                { return ContentTypeJSON }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return jsonAPI.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return jsonAPI.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) ContentType() string { return ContentTypeMsgPack }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

var (
	// JSON is the default codec.
	JSON Codec = jsonCodec{}
	// MsgPack encodes bodies as MessagePack using the json struct tags.
	MsgPack Codec = msgpackCodec{}
)

// CodecFor returns the codec registered for a Content-Type or Accept value.
// Problem details and unknown types map to JSON; ok is false for unknown ones.
func CodecFor(contentType string) (Codec, bool) {
	for _, part := range strings.Split(contentType, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch {
		case mt == ContentTypeMsgPack || mt == "application/x-msgpack":
			return MsgPack, true
		case mt == ContentTypeJSON || strings.HasSuffix(mt, "+json"):
			return JSON, true
		case mt == "*/*" || mt == "application/*":
			return JSON, true
		}
	}
	return JSON, false
}
