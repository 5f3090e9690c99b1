package description

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bytedance/sonic"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
)

// Parse builds a validated API from a raw description map. Supplied keys
// are merged over a fresh copy of the default template at the top level
// only: a partial endpoint replaces the default endpoint wholesale rather
// than filling in its gaps. Unknown keys at any level are preserved as
// metadata, never rejected.
func Parse(raw map[string]any) (*API, error) {
	merged := Default()
	for key, value := range raw {
		merged[key] = value
	}

	api := &API{
		Operations: make(map[string]*Operation),
		Metadata:   make(map[string]any),
	}

	var errs []error
	for key, value := range merged {
		switch key {
		case "name":
			api.Name, errs = stringField(key, value, errs)
		case "version":
			api.Version, errs = stringField(key, value, errs)
		case "timeout":
			d, err := durationValue(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("timeout: %w", err))
				continue
			}
			api.Timeout = d
		case "debug":
			b, ok := value.(bool)
			if !ok {
				errs = append(errs, fmt.Errorf("debug: expected bool, got %T", value))
				continue
			}
			api.Debug = b
		case "protocol":
			api.Protocol, errs = stringField(key, value, errs)
		case "endpoint":
			ep, err := parseEndpoint(value)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			api.Endpoint = ep
		case "exceptions":
			names, err := stringListValue(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("exceptions: %w", err))
				continue
			}
			api.Exceptions = names
		case "operations":
			ops, err := parseOperations(value)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			api.Operations = ops
		default:
			api.Metadata[key] = value
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, errspkg.NewDescriptionError(err)
	}
	if err := api.Validate(); err != nil {
		return nil, errspkg.NewDescriptionError(err)
	}
	return api, nil
}

// ParseJSON decodes a JSON description and parses it.
func ParseJSON(data []byte) (*API, error) {
	raw := make(map[string]any)
	if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
		return nil, errspkg.NewDescriptionError(err)
	}
	return Parse(raw)
}

// ParseYAML decodes a YAML description and parses it.
func ParseYAML(data []byte) (*API, error) {
	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errspkg.NewDescriptionError(err)
	}
	return Parse(raw)
}

func parseEndpoint(value any) (Endpoint, error) {
	raw, ok := value.(map[string]any)
	if !ok {
		return Endpoint{}, fmt.Errorf("endpoint: expected map, got %T", value)
	}

	var (
		ep   Endpoint
		errs []error
	)
	for key, v := range raw {
		switch key {
		case "scheme":
			ep.Scheme, errs = stringField("endpoint scheme", v, errs)
		case "host":
			ep.Host, errs = stringField("endpoint host", v, errs)
		case "pattern":
			ep.Pattern, errs = stringField("endpoint pattern", v, errs)
		case "port":
			port, ok := intValue(v)
			if !ok {
				errs = append(errs, fmt.Errorf("endpoint port: expected number, got %T", v))
				continue
			}
			ep.Port = port
		default:
			if ep.Metadata == nil {
				ep.Metadata = make(map[string]any)
			}
			ep.Metadata[key] = v
		}
	}
	return ep, errors.Join(errs...)
}

func parseOperations(value any) (map[string]*Operation, error) {
	ops := make(map[string]*Operation)

	add := func(fallbackName string, raw map[string]any) error {
		op, err := parseOperation(fallbackName, raw)
		if err != nil {
			return err
		}
		if _, exists := ops[op.Name]; exists {
			return fmt.Errorf("duplicate operation %q", op.Name)
		}
		ops[op.Name] = op
		return nil
	}

	var errs []error
	switch typed := value.(type) {
	case []any:
		for _, elem := range typed {
			raw, ok := elem.(map[string]any)
			if !ok {
				errs = append(errs, fmt.Errorf("operations: expected map entries, got %T", elem))
				continue
			}
			if err := add("", raw); err != nil {
				errs = append(errs, err)
			}
		}
	case map[string]any:
		// Map form: the key names the operation unless the entry says
		// otherwise.
		for name, elem := range typed {
			raw, ok := elem.(map[string]any)
			if !ok {
				errs = append(errs, fmt.Errorf("operation %q: expected map, got %T", name, elem))
				continue
			}
			if err := add(name, raw); err != nil {
				errs = append(errs, err)
			}
		}
	default:
		return nil, fmt.Errorf("operations: expected list or map, got %T", value)
	}

	return ops, errors.Join(errs...)
}

func parseOperation(fallbackName string, raw map[string]any) (*Operation, error) {
	op := &Operation{Name: fallbackName}

	var errs []error
	for key, value := range raw {
		switch key {
		case "name":
			op.Name, errs = stringField("operation name", value, errs)
		case "input":
			fields, err := stringListValue(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("operation %q input: %w", op.Name, err))
				continue
			}
			op.Inputs = fields
		case "output":
			fields, err := stringListValue(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("operation %q output: %w", op.Name, err))
				continue
			}
			op.Outputs = fields
		default:
			if op.Metadata == nil {
				op.Metadata = make(map[string]any)
			}
			op.Metadata[key] = value
		}
	}

	if op.Name == "" {
		errs = append(errs, errors.New("operation missing name"))
	} else if err := ValidateName(op.Name); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return op, nil
}

func stringField(key string, value any, errs []error) (string, []error) {
	s, ok := value.(string)
	if !ok {
		return "", append(errs, fmt.Errorf("%s: expected string, got %T", key, value))
	}
	return s, errs
}

func stringListValue(value any) ([]string, error) {
	switch typed := value.(type) {
	case []string:
		return append([]string(nil), typed...), nil
	case []any:
		out := make([]string, 0, len(typed))
		for _, elem := range typed {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("expected string entries, got %T", elem)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", value)
	}
}

func intValue(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case float64:
		return int(typed), true
	default:
		return 0, false
	}
}

// durationValue accepts the duration forms a description may carry: a
// bare number of seconds, a duration string like "2s", or a native
// time.Duration when the map was built in code.
func durationValue(value any) (time.Duration, error) {
	switch typed := value.(type) {
	case time.Duration:
		return typed, nil
	case int:
		return time.Duration(typed) * time.Second, nil
	case int64:
		return time.Duration(typed) * time.Second, nil
	case float64:
		return time.Duration(typed * float64(time.Second)), nil
	case string:
		d, err := time.ParseDuration(typed)
		if err != nil {
			return 0, err
		}
		return d, nil
	default:
		return 0, fmt.Errorf("expected number of seconds or duration string, got %T", value)
	}
}
