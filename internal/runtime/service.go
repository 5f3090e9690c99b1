package runtime

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	codecpkg "github.com/drblury/opflow/codec"
	containerpkg "github.com/drblury/opflow/internal/runtime/container"
	descriptionpkg "github.com/drblury/opflow/internal/runtime/description"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	faultpkg "github.com/drblury/opflow/internal/runtime/fault"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
)

// HandlerFunc implements one operation. It reads inputs from the request
// container, writes outputs to the response container, and returns an
// error to raise a fault. Returning a fault from the service's registry
// keeps its name across the wire; any other error is folded into the
// generic Exception kind.
type HandlerFunc func(request, response containerpkg.Container, call *Context) error

// ServiceDependencies holds the optional collaborators for a Service.
type ServiceDependencies struct {
	Codec   codecpkg.Codec       // Overrides the codec named by the description's protocol.
	Plugins []PluginRegistration // Registered in order during construction.
}

// Service dispatches calls described by an api description to registered
// operation handlers, running each call through the plugin pipeline.
type Service struct {
	API    *descriptionpkg.API
	Logger loggingpkg.ServiceLogger

	codec   codecpkg.Codec
	faults  *faultpkg.Registry
	plugins *pluginSet

	handlers   map[string]HandlerFunc
	handlersMu sync.RWMutex
}

// NewService constructs a Service for the supplied description. Register
// handlers on the returned Service before processing calls.
func NewService(api *descriptionpkg.API, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if api == nil {
		return nil, errspkg.ErrDescriptionRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := api.Validate(); err != nil {
		return nil, errspkg.NewDescriptionError(err)
	}

	cdc := deps.Codec
	if cdc == nil {
		var err error
		cdc, err = codecpkg.Get(api.Protocol)
		if err != nil {
			return nil, err
		}
	}

	s := &Service{
		API:      api,
		Logger:   log,
		codec:    cdc,
		faults:   faultpkg.NewRegistry(),
		plugins:  newPluginSet(),
		handlers: make(map[string]HandlerFunc),
	}

	for _, reg := range deps.Plugins {
		if err := s.RegisterPlugin(reg); err != nil {
			return nil, fmt.Errorf("opflow: register plugin %s: %w", pluginName(reg), err)
		}
	}

	log.Info("Creating rpc service", loggingpkg.LogFields{
		"api":      api.Name,
		"version":  api.Version,
		"protocol": cdc.Name(),
	})
	return s, nil
}

// RegisterOperation binds handler to the named operation. The operation
// must exist in the description and must not already have a handler.
func (s *Service) RegisterOperation(name string, handler HandlerFunc) error {
	if handler == nil {
		return errspkg.ErrHandlerRequired
	}
	if s.API.Operation(name) == nil {
		return errspkg.ErrUnknownOperation
	}

	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	if _, ok := s.handlers[name]; ok {
		return errspkg.ErrHandlerBound
	}
	s.handlers[name] = handler
	return nil
}

// RegisterPlugin attaches a plugin to the service pipeline. Registration
// fails once the first call has been processed.
func (s *Service) RegisterPlugin(reg PluginRegistration) error {
	return s.plugins.register(reg)
}

// Validate reports the operations that still lack a handler. Call it
// after registration and before serving to fail early instead of
// faulting per call.
func (s *Service) Validate() error {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()

	var missing []string
	for name := range s.API.Operations {
		if _, ok := s.handlers[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", errspkg.ErrHandlerRequired, strings.Join(missing, ", "))
}

// Process runs one call through the pipeline and returns the serialized
// response. Pipeline failures are returned in-band as a fault body; the
// error return is reserved for calls that never enter the pipeline, such
// as an unknown operation name.
func (s *Service) Process(ctx context.Context, operation string, body []byte) ([]byte, error) {
	s.plugins.seal()
	if s.API.Operation(operation) == nil {
		return nil, errspkg.ErrUnknownOperation
	}
	return s.newProcessor(ctx, operation, body).Execute()
}

// ContentType returns the MIME type of the payloads the service consumes
// and produces.
func (s *Service) ContentType() string {
	return s.codec.ContentType()
}

// Faults returns the service's fault registry. Handlers raise named
// faults through it so the names survive the trip to the client.
func (s *Service) Faults() *faultpkg.Registry {
	return s.faults
}

// Matcher returns the compiled path matcher for the service's endpoint.
func (s *Service) Matcher() (*descriptionpkg.Matcher, error) {
	return s.API.Matcher()
}

func (s *Service) handler(name string) HandlerFunc {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	return s.handlers[name]
}

func pluginName(reg PluginRegistration) string {
	if reg.Name == "" {
		return "anonymous_plugin"
	}
	return reg.Name
}
