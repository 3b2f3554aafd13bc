package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Every persisted record is CBOR with Core Deterministic Encoding so the
// same logical record always produces identical bytes, and decoding
// ignores unknown fields so old binaries can read records written by
// newer code (and vice versa — removed fields simply default).

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		// any-typed targets decode maps as map[string]any; struct field
		// decoding is unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v with deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v. Unknown fields are ignored.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is a raw encoded CBOR value, used to delay decoding of
// per-kind event payloads.
type RawMessage = cbor.RawMessage
