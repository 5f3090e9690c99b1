package runtime

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	containerpkg "github.com/drblury/opflow/internal/runtime/container"
	descriptionpkg "github.com/drblury/opflow/internal/runtime/description"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
)

type logRecord struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

type recordingLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (r *recordingLogger) add(level, msg string, err error, fields loggingpkg.LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, logRecord{level: level, msg: msg, err: err, fields: fields})
}

func (r *recordingLogger) With(loggingpkg.LogFields) loggingpkg.ServiceLogger { return r }
func (r *recordingLogger) Debug(msg string, fields loggingpkg.LogFields)      { r.add("debug", msg, nil, fields) }
func (r *recordingLogger) Info(msg string, fields loggingpkg.LogFields)       { r.add("info", msg, nil, fields) }
func (r *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	r.add("error", msg, err, fields)
}
func (r *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) { r.add("trace", msg, nil, fields) }

func (r *recordingLogger) find(level, msg string) *logRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].level == level && r.records[i].msg == msg {
			return &r.records[i]
		}
	}
	return nil
}

// whitelistedAPI lists RequestException so the status raised by the
// throttle and key auth plugins survives redaction.
func whitelistedAPI(t *testing.T) *descriptionpkg.API {
	t.Helper()
	api, err := descriptionpkg.Parse(map[string]any{
		"name": "calc",
		"operations": []any{
			map[string]any{"name": "add", "input": []any{"a", "b"}, "output": []any{"sum"}},
		},
		"exceptions": []any{"RequestException"},
	})
	if err != nil {
		t.Fatalf("parse description: %v", err)
	}
	return api
}

func TestCallIDPlugin(t *testing.T) {
	svc := testService(t, testAPI(t))
	if err := svc.RegisterPlugin(CallIDPlugin()); err != nil {
		t.Fatalf("register plugin: %v", err)
	}

	var ids []string
	if err := svc.RegisterOperation("ping", func(request, response containerpkg.Container, call *Context) error {
		id, _ := call.Fields().Get(CallIDField).(string)
		ids = append(ids, id)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Process(context.Background(), "ping", nil); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if len(ids) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(ids))
	}
	for _, id := range ids {
		if _, err := ulid.Parse(id); err != nil {
			t.Fatalf("expected a ulid, got %q: %v", id, err)
		}
	}
	if ids[0] == ids[1] {
		t.Fatal("expected distinct call ids")
	}
}

func TestAccessLogPlugin(t *testing.T) {
	log := &recordingLogger{}
	svc := testService(t, testAPI(t))
	if err := svc.RegisterPlugin(AccessLogPlugin(log)); err != nil {
		t.Fatalf("register plugin: %v", err)
	}
	if err := svc.RegisterOperation("ping", func(request, response containerpkg.Container, call *Context) error {
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Process(context.Background(), "ping", nil); err != nil {
		t.Fatalf("process: %v", err)
	}

	if rec := log.find("debug", "Handling call"); rec == nil || rec.fields["operation"] != "ping" {
		t.Fatalf("expected a handling entry for ping, got %+v", log.records)
	}
	completed := log.find("info", "Call completed")
	if completed == nil || completed.fields["operation"] != "ping" {
		t.Fatalf("expected a completion entry for ping, got %+v", log.records)
	}
	if _, ok := completed.fields["elapsed"].(string); !ok {
		t.Fatal("expected elapsed time in the completion entry")
	}
}

func TestAccessLogPluginLogsFailures(t *testing.T) {
	log := &recordingLogger{}
	svc := testService(t, testAPI(t))
	if err := svc.RegisterPlugin(AccessLogPlugin(log)); err != nil {
		t.Fatalf("register plugin: %v", err)
	}
	if err := svc.RegisterOperation("ping", func(request, response containerpkg.Container, call *Context) error {
		return svc.Faults().New("SecretError")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Process(context.Background(), "ping", nil); err != nil {
		t.Fatalf("process: %v", err)
	}

	failed := log.find("error", "Call failed")
	if failed == nil {
		t.Fatalf("expected a failure entry, got %+v", log.records)
	}
	if failed.err == nil || !strings.Contains(failed.err.Error(), "SecretError") {
		t.Fatalf("expected the fault in the failure entry, got %v", failed.err)
	}
}

func TestAccessLogPluginRequiresLogger(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	AccessLogPlugin(nil)
}

func TestMetricsPlugin(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := testService(t, testAPI(t))
	if err := svc.RegisterPlugin(MetricsPlugin(reg)); err != nil {
		t.Fatalf("register plugin: %v", err)
	}

	fail := false
	if err := svc.RegisterOperation("add", func(request, response containerpkg.Container, call *Context) error {
		if fail {
			return svc.Faults().New("OverflowError")
		}
		return addHandler(request, response, call)
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Process(context.Background(), "add", []byte(`{"a": 1, "b": 2}`)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	fail = true
	if _, err := svc.Process(context.Background(), "add", []byte(`{}`)); err != nil {
		t.Fatalf("process: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var sawCalls, sawDuration bool
	for _, family := range families {
		switch family.GetName() {
		case "opflow_calls_total":
			sawCalls = true
			if got := family.GetMetric()[0].GetCounter().GetValue(); got != 3 {
				t.Fatalf("expected 3 calls, got %v", got)
			}
		case "opflow_call_duration_seconds":
			sawDuration = true
			if got := family.GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
				t.Fatalf("expected 2 duration samples, got %v", got)
			}
		}
	}
	if !sawCalls || !sawDuration {
		t.Fatalf("expected both metric families, got %v", families)
	}
}

func TestMetricsPluginSharesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	// Two plugin instances against one registry must reuse the same
	// collectors instead of failing the duplicate registration.
	MetricsPlugin(reg)
	MetricsPlugin(reg)
}

func TestTracerPlugin(t *testing.T) {
	svc := testService(t, testAPI(t))
	if err := svc.RegisterPlugin(TracerPlugin()); err != nil {
		t.Fatalf("register plugin: %v", err)
	}

	var observed trace.Span
	if err := svc.RegisterOperation("ping", func(request, response containerpkg.Container, call *Context) error {
		observed = trace.SpanFromContext(call.Context())
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Process(context.Background(), "ping", nil); err != nil {
		t.Fatalf("process: %v", err)
	}
	if observed == nil {
		t.Fatal("expected span to be attached to the call context")
	}
}

func TestRecovererPlugin(t *testing.T) {
	svc := testService(t, testAPI(t))
	if err := svc.RegisterPlugin(RecovererPlugin()); err != nil {
		t.Fatalf("register plugin: %v", err)
	}
	if err := svc.RegisterPlugin(PluginRegistration{
		Name:  "exploding",
		Scope: ScopeRequest,
		Request: func(c *Context) error {
			panic("wired wrong")
		},
	}); err != nil {
		t.Fatalf("register plugin: %v", err)
	}
	if err := svc.RegisterOperation("add", addHandler); err != nil {
		t.Fatalf("register: %v", err)
	}

	body, err := svc.Process(context.Background(), "add", []byte(`{"a": 1, "b": 2}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	name, args := decodeFault(t, body)
	if name != "RequestException" || len(args) != 1 || args[0] != float64(500) {
		t.Fatalf("expected the redacted fault, got %q %v", name, args)
	}
}

func TestThrottlePlugin(t *testing.T) {
	svc := testService(t, whitelistedAPI(t))
	if err := svc.RegisterPlugin(ThrottlePlugin(rate.Limit(1), 1)); err != nil {
		t.Fatalf("register plugin: %v", err)
	}
	if err := svc.RegisterOperation("add", addHandler); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Process(context.Background(), "add", []byte(`{"a": 1, "b": 2}`)); err != nil {
		t.Fatalf("process: %v", err)
	}

	body, err := svc.Process(context.Background(), "add", []byte(`{"a": 1, "b": 2}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	name, args := decodeFault(t, body)
	if name != "RequestException" {
		t.Fatalf("expected RequestException, got %q", name)
	}
	if len(args) != 2 || args[0] != float64(429) {
		t.Fatalf("expected a 429 fault, got %v", args)
	}
}

func TestKeyAuthPlugin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	newService := func(t *testing.T) (*Service, *containerpkg.Container) {
		t.Helper()
		svc := testService(t, whitelistedAPI(t))
		if err := svc.RegisterPlugin(KeyAuthPlugin(map[string]string{"admin": string(hash)})); err != nil {
			t.Fatalf("register plugin: %v", err)
		}
		var seen containerpkg.Container
		if err := svc.RegisterOperation("add", func(request, response containerpkg.Container, call *Context) error {
			seen = request.Clone()
			seen.Set(AuthKeyField, call.Fields().Get(AuthKeyField))
			return addHandler(request, response, call)
		}); err != nil {
			t.Fatalf("register: %v", err)
		}
		return svc, &seen
	}

	t.Run("valid key", func(t *testing.T) {
		svc, seen := newService(t)
		body, err := svc.Process(context.Background(), "add", []byte(`{"a": 1, "b": 2, "api_key": "hunter2"}`))
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		payload := decodeBody(t, body)
		if payload["sum"] != float64(3) {
			t.Fatalf("expected sum 3, got %v", payload)
		}
		if seen.Has(KeyAuthField) {
			t.Fatal("expected the api key to be scrubbed before the handler")
		}
		if seen.Get(AuthKeyField) != "admin" {
			t.Fatalf("expected the key id in the call fields, got %v", seen.Get(AuthKeyField))
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		svc, _ := newService(t)
		body, err := svc.Process(context.Background(), "add", []byte(`{"a": 1, "b": 2, "api_key": "letmein"}`))
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		name, args := decodeFault(t, body)
		if name != "RequestException" || len(args) != 2 || args[0] != float64(401) {
			t.Fatalf("expected a 401 fault, got %q %v", name, args)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		svc, _ := newService(t)
		body, err := svc.Process(context.Background(), "add", []byte(`{"a": 1, "b": 2}`))
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		name, args := decodeFault(t, body)
		if name != "RequestException" || len(args) != 2 || args[0] != float64(401) {
			t.Fatalf("expected a 401 fault, got %q %v", name, args)
		}
	})
}

func TestDefaultPlugins(t *testing.T) {
	regs := DefaultPlugins(loggingpkg.NewNopLogger())

	var names []string
	for _, reg := range regs {
		names = append(names, reg.Name)
	}
	want := []string{"call_id", "access_log", "tracer", "metrics", "recoverer"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}

	svc := testService(t, testAPI(t))
	for _, reg := range regs {
		if err := svc.RegisterPlugin(reg); err != nil {
			t.Fatalf("register %s: %v", reg.Name, err)
		}
	}
}
