package runtime

import (
	"fmt"

	"github.com/bytedance/sonic"

	containerpkg "github.com/drblury/opflow/internal/runtime/container"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
)

// TypedHandler implements one operation over plain structs instead of
// containers. In and Out use json tags to name the operation's declared
// input and output fields.
type TypedHandler[In any, Out any] func(call *Context, in In) (Out, error)

// RegisterTypedOperation wraps a typed handler in the field remapping and
// binds it to the named operation. Request fields decode into In before
// the handler runs; the returned Out is flattened back into the response
// container, so plugins and the wire see the same flat field map as with
// an untyped handler.
func RegisterTypedOperation[In any, Out any](svc *Service, name string, handler TypedHandler[In, Out]) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	if handler == nil {
		return errspkg.ErrHandlerRequired
	}

	return svc.RegisterOperation(name, func(request, response containerpkg.Container, call *Context) error {
		var in In
		if err := remap(request.Map(), &in); err != nil {
			return fmt.Errorf("opflow: decode %s request: %w", name, err)
		}

		out, err := handler(call, in)
		if err != nil {
			return err
		}

		fields := make(map[string]any)
		if err := remap(out, &fields); err != nil {
			return fmt.Errorf("opflow: encode %s response: %w", name, err)
		}
		response.Update(fields)
		return nil
	})
}

// remap converts between a field map and a tagged struct by passing the
// value through JSON.
func remap(src, dst any) error {
	raw, err := sonic.ConfigStd.Marshal(src)
	if err != nil {
		return err
	}
	return sonic.ConfigStd.Unmarshal(raw, dst)
}
