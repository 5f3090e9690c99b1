package runtime

import (
	"context"
	"errors"
	"testing"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
)

type addInput struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type addOutput struct {
	Sum float64 `json:"sum"`
}

func TestRegisterTypedOperation(t *testing.T) {
	svc := testService(t, testAPI(t))
	err := RegisterTypedOperation(svc, "add", func(call *Context, in addInput) (addOutput, error) {
		return addOutput{Sum: in.A + in.B}, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	body, err := svc.Process(context.Background(), "add", []byte(`{"a": 2, "b": 3}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	payload := decodeBody(t, body)
	if payload["sum"] != float64(5) {
		t.Fatalf("expected sum 5, got %v", payload)
	}
}

func TestRegisterTypedOperationFaults(t *testing.T) {
	svc := testService(t, testAPI(t))
	err := RegisterTypedOperation(svc, "add", func(call *Context, in addInput) (addOutput, error) {
		return addOutput{}, svc.Faults().New("OverflowError", in.A+in.B)
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	body, err := svc.Process(context.Background(), "add", []byte(`{"a": 60, "b": 50}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	name, args := decodeFault(t, body)
	if name != "OverflowError" || len(args) != 1 || args[0] != float64(110) {
		t.Fatalf("expected the whitelisted overflow fault, got %q %v", name, args)
	}
}

func TestRegisterTypedOperationRejectsBadInput(t *testing.T) {
	svc := testService(t, testAPI(t))
	err := RegisterTypedOperation(svc, "add", func(call *Context, in addInput) (addOutput, error) {
		return addOutput{Sum: in.A + in.B}, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Fields of the wrong shape fail the decode step; the caller sees a
	// redacted fault because decode errors are not whitelisted.
	body, err := svc.Process(context.Background(), "add", []byte(`{"a": "not a number"}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	name, args := decodeFault(t, body)
	if name != "RequestException" || len(args) != 1 || args[0] != float64(500) {
		t.Fatalf("expected the redacted fault, got %q %v", name, args)
	}
}

func TestRegisterTypedOperationValidation(t *testing.T) {
	svc := testService(t, testAPI(t))

	if err := RegisterTypedOperation[addInput, addOutput](nil, "add", nil); !errors.Is(err, errspkg.ErrServiceRequired) {
		t.Fatalf("expected ErrServiceRequired, got %v", err)
	}
	if err := RegisterTypedOperation[addInput, addOutput](svc, "add", nil); !errors.Is(err, errspkg.ErrHandlerRequired) {
		t.Fatalf("expected ErrHandlerRequired, got %v", err)
	}
	ok := func(call *Context, in addInput) (addOutput, error) { return addOutput{}, nil }
	if err := RegisterTypedOperation(svc, "missing", ok); !errors.Is(err, errspkg.ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}
