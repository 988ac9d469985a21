package push

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"

	"livedom/dom/common"
	"livedom/dom/document"
)

// Encoder encodes a Result into a byte array.
type Encoder interface {
	// Encode encodes a Result into a byte array.
	Encode(result document.Result) ([]byte, error)
}

// Decoder decodes a byte array into a Result.
type Decoder interface {
	// Decode decodes a byte array into a Result.
	Decode(data []byte) (document.Result, error)
}

// EncoderDecoder combines the Encoder and Decoder interfaces.
type EncoderDecoder interface {
	Encoder
	Decoder
}

type kindEnvelope struct {
	Kind document.Kind `json:"kind"`
}

type treeEnvelope struct {
	Kind document.Kind `json:"kind"`
	HTML string        `json:"html"`
}

type literalEnvelope struct {
	Kind document.Kind `json:"kind"`
	Text string        `json:"text"`
}

type updateEnvelope struct {
	Kind             document.Kind     `json:"kind"`
	Changes          []document.Change `json:"changes"`
	ChangedWidgetIDs []common.NodeID   `json:"changed_widget_ids"`
}

// JSONEncoderDecoder encodes Results as a JSON object tagged with "kind":
//
//	{"kind":"tree","html":"..."}
//	{"kind":"literal","text":"..."}
//	{"kind":"update","changes":[...],"changed_widget_ids":[...]}
type JSONEncoderDecoder struct{}

// Encode encodes a Result into a JSON byte array.
func (ed *JSONEncoderDecoder) Encode(result document.Result) ([]byte, error) {
	switch r := result.(type) {
	case document.FullTree:
		return json.Marshal(treeEnvelope{Kind: r.Kind(), HTML: r.HTML})
	case document.FullLiteral:
		return json.Marshal(literalEnvelope{Kind: r.Kind(), Text: r.Text})
	case document.Update:
		env := updateEnvelope{
			Kind:             r.Kind(),
			Changes:          r.Changes,
			ChangedWidgetIDs: r.ChangedWidgetIDs,
		}
		if env.Changes == nil {
			env.Changes = []document.Change{}
		}
		if env.ChangedWidgetIDs == nil {
			env.ChangedWidgetIDs = []common.NodeID{}
		}
		return json.Marshal(env)
	default:
		return nil, errors.Errorf("cannot encode result of type %T", result)
	}
}

// Decode decodes a JSON byte array into a Result.
func (ed *JSONEncoderDecoder) Decode(data []byte) (document.Result, error) {
	var head kindEnvelope
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.Wrap(err, "failed to decode result kind")
	}

	switch head.Kind {
	case document.KindTree:
		var env treeEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, errors.Wrap(err, "failed to decode tree result")
		}
		return document.FullTree{HTML: env.HTML}, nil
	case document.KindLiteral:
		var env literalEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, errors.Wrap(err, "failed to decode literal result")
		}
		return document.FullLiteral{Text: env.Text}, nil
	case document.KindUpdate:
		var env updateEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, errors.Wrap(err, "failed to decode update result")
		}
		return document.Update{Changes: env.Changes, ChangedWidgetIDs: env.ChangedWidgetIDs}, nil
	default:
		return nil, errors.Errorf("unknown result kind: %q", head.Kind)
	}
}

// Base64EncoderDecoder wraps another EncoderDecoder in base64.
type Base64EncoderDecoder struct {
	// The underlying encoder/decoder to use before/after base64 encoding/decoding.
	underlying EncoderDecoder
}

// NewBase64EncoderDecoder creates a new Base64EncoderDecoder with the specified underlying encoder/decoder.
func NewBase64EncoderDecoder(underlying EncoderDecoder) *Base64EncoderDecoder {
	if underlying == nil {
		underlying = &JSONEncoderDecoder{}
	}
	return &Base64EncoderDecoder{
		underlying: underlying,
	}
}

// Encode encodes a Result into a base64 byte array.
func (ed *Base64EncoderDecoder) Encode(result document.Result) ([]byte, error) {
	data, err := ed.underlying.Encode(result)
	if err != nil {
		return nil, err
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(encoded, data)
	return encoded, nil
}

// Decode decodes a base64 byte array into a Result.
func (ed *Base64EncoderDecoder) Decode(data []byte) (document.Result, error) {
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(decoded, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode base64")
	}
	return ed.underlying.Decode(decoded[:n])
}

// GetEncoderDecoder returns an EncoderDecoder for the specified format.
func GetEncoderDecoder(format EncodingFormat) (EncoderDecoder, error) {
	switch format {
	case EncodingFormatJSON:
		return &JSONEncoderDecoder{}, nil
	case EncodingFormatBase64:
		return NewBase64EncoderDecoder(&JSONEncoderDecoder{}), nil
	default:
		return nil, common.ErrInvalidEncoding{Format: string(format)}
	}
}

// EncodeResult encodes result in the specified format.
func EncodeResult(result document.Result, format EncodingFormat) ([]byte, error) {
	encoder, err := GetEncoderDecoder(format)
	if err != nil {
		return nil, err
	}
	return encoder.Encode(result)
}

// DecodeResult decodes data in the specified format.
func DecodeResult(data []byte, format EncodingFormat) (document.Result, error) {
	decoder, err := GetEncoderDecoder(format)
	if err != nil {
		return nil, err
	}
	return decoder.Decode(data)
}
