package docstore

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	fieldsEncMode cbor.EncMode
	fieldsDecMode cbor.DecMode
)

func init() {
	var err error

	fieldsEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("docstore: CBOR encoder initialization failed: " + err.Error())
	}

	// Field values typed as any must decode into map[string]any rather than
	// the CBOR default map[interface{}]interface{}.
	fieldsDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("docstore: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeFields serializes document fields with deterministic CBOR.
func EncodeFields(fields Fields) ([]byte, error) {
	if fields == nil {
		fields = Fields{}
	}
	data, err := fieldsEncMode.Marshal(map[string]any(fields))
	if err != nil {
		return nil, fmt.Errorf("docstore: encode fields: %w", err)
	}
	return data, nil
}

// DecodeFields parses fields produced by EncodeFields.
func DecodeFields(data []byte) (Fields, error) {
	decoded := map[string]any{}
	if len(data) == 0 {
		return Fields(decoded), nil
	}
	if err := fieldsDecMode.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("docstore: decode fields: %w", err)
	}
	return Fields(decoded), nil
}

// MergeFields overlays update onto base and returns the result as a new map.
func MergeFields(base, update Fields) Fields {
	out := make(Fields, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}
