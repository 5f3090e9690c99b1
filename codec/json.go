package codec

import (
	"bytes"

	"github.com/bytedance/sonic"
)

var jsonConfig = sonic.ConfigStd

// JSON returns the builtin JSON codec.
func JSON() Codec {
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) ContentType() string {
	return "application/json"
}

func (jsonCodec) Marshal(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	return jsonConfig.Marshal(fields)
}

func (jsonCodec) Unmarshal(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	fields := make(map[string]any)
	if err := jsonConfig.Unmarshal(data, &fields); err != nil {
		return nil, MalformedPayloadError{Protocol: "json", Err: err}
	}
	return fields, nil
}
