// Package codec decodes and encodes ingress batches. JSON is the default
// wire format; CBOR is accepted for compact producers.
//
// A batch on the wire is either a single object or an array of objects.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Media types.
const (
	MediaJSON = "application/json"
	MediaCBOR = "application/cbor"
)

// Sentinel kinds for codec errors.
var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrEmpty                = errors.New("empty batch")
	ErrDecode               = errors.New("malformed batch")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() { //nolint:gochecknoinits // codec modes are fixed at startup
	var err error
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// MediaType returns the normalized media type of a Content-Type header.
// An empty header means JSON.
func MediaType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return MediaJSON, nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, contentType)
	}
	switch {
	case mt == MediaJSON, strings.HasSuffix(mt, "+json"):
		return MediaJSON, nil
	case mt == MediaCBOR:
		return MediaCBOR, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mt)
}

// DecodeBatch decodes body as a single T or a list of T according to
// contentType.
func DecodeBatch[T any](contentType string, body []byte) ([]T, error) {
	mt, err := MediaType(contentType)
	if err != nil {
		return nil, err
	}
	if mt == MediaCBOR {
		return decodeCBOR[T](body)
	}
	return decodeJSON[T](body)
}

func decodeJSON[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmpty
	}

	var out []T
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	} else {
		var one T
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		out = []T{one}
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// CBOR major type 4 (array) occupies the top three bits 0b100.
const cborArrayMajor = 0x80

func decodeCBOR[T any](body []byte) ([]T, error) {
	if len(body) == 0 {
		return nil, ErrEmpty
	}

	var out []T
	if body[0]&0xe0 == cborArrayMajor {
		if err := decMode.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	} else {
		var one T
		if err := decMode.Unmarshal(body, &one); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		out = []T{one}
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// MarshalCBOR encodes v with deterministic CBOR.
func MarshalCBOR(v any) ([]byte, error) {
	return encMode.Marshal(v)
}
