// Package codec defines the text codec used to carry call payloads across
// the wire. Payloads are flat string-keyed field maps; codecs turn them
// into body bytes and back. Codecs register under a protocol name so an
// api description can select one with its "protocol" metadata key.
package codec

// DefaultProtocol is the codec used when a description names none.
const DefaultProtocol = "json"

// Codec converts between field maps and wire bodies.
type Codec interface {
	// Name is the protocol name the codec registers under.
	Name() string
	// ContentType is the MIME type of encoded bodies.
	ContentType() string
	// Marshal encodes a field map into body bytes.
	Marshal(fields map[string]any) ([]byte, error)
	// Unmarshal decodes body bytes into a field map. An empty body
	// decodes to an empty map.
	Unmarshal(data []byte) (map[string]any, error)
}

// MalformedPayloadError reports a body that the named protocol could not
// decode.
type MalformedPayloadError struct {
	Protocol string
	Err      error
}

func (e MalformedPayloadError) Error() string {
	return "opflow: malformed " + e.Protocol + " payload: " + e.Err.Error()
}

func (e MalformedPayloadError) Unwrap() error {
	return e.Err
}
