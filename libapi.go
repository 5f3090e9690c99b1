package opflow

import (
	codecpkg "github.com/drblury/opflow/codec"
	runtimepkg "github.com/drblury/opflow/internal/runtime"
	containerpkg "github.com/drblury/opflow/internal/runtime/container"
	descriptionpkg "github.com/drblury/opflow/internal/runtime/description"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	faultpkg "github.com/drblury/opflow/internal/runtime/fault"
	idspkg "github.com/drblury/opflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	transportpkg "github.com/drblury/opflow/transport"
)

type (
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	Client              = runtimepkg.Client
	ClientDependencies  = runtimepkg.ClientDependencies
	HandlerFunc         = runtimepkg.HandlerFunc

	// Pipeline types
	Context            = runtimepkg.Context
	Scope              = runtimepkg.Scope
	PluginRegistration = runtimepkg.PluginRegistration
	RequestPlugin      = runtimepkg.RequestPlugin
	OperationPlugin    = runtimepkg.OperationPlugin

	Container = containerpkg.Container

	TypedHandler[In any, Out any] = runtimepkg.TypedHandler[In, Out]

	// Description types
	API       = descriptionpkg.API
	Operation = descriptionpkg.Operation
	Endpoint  = descriptionpkg.Endpoint
	Matcher   = descriptionpkg.Matcher

	// Fault types
	Fault         = faultpkg.Fault
	FaultKind     = faultpkg.Kind
	FaultRegistry = faultpkg.Registry

	// Codec types
	Codec         = codecpkg.Codec
	CodecRegistry = codecpkg.Registry

	// Transport contract
	Transport = transportpkg.Transport
	Response  = transportpkg.Response

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	DescriptionError      = errspkg.DescriptionError
	MalformedPayloadError = codecpkg.MalformedPayloadError
)

// Pipeline scopes, in traversal order.
const (
	ScopeRequest   = runtimepkg.ScopeRequest
	ScopeOperation = runtimepkg.ScopeOperation
	ScopeFunction  = runtimepkg.ScopeFunction
	ScopeDone      = runtimepkg.ScopeDone
)

// Reserved wire and field keys.
const (
	WireKey        = faultpkg.WireKey
	RedactedStatus = faultpkg.RedactedStatus
	CallIDField    = runtimepkg.CallIDField
	AuthKeyField   = runtimepkg.AuthKeyField
	KeyAuthField   = runtimepkg.KeyAuthField
)

// Description defaults.
const (
	DefaultTimeout       = descriptionpkg.DefaultTimeout
	DefaultProtocol      = codecpkg.DefaultProtocol
	OperationPlaceholder = descriptionpkg.OperationPlaceholder
)

// LevelTrace is the slog level the slog-backed logger uses for Trace.
const LevelTrace = loggingpkg.LevelTrace

var (
	NewService = runtimepkg.NewService
	NewClient  = runtimepkg.NewClient

	// Description parsing
	ParseDescription     = descriptionpkg.Parse
	ParseDescriptionJSON = descriptionpkg.ParseJSON
	ParseDescriptionYAML = descriptionpkg.ParseYAML
	DefaultDescription   = descriptionpkg.Default

	NewContainer = containerpkg.New

	// Faults
	NewFaultRegistry = faultpkg.NewRegistry
	FaultFrom        = faultpkg.From
	EncodeFault      = faultpkg.Encode
	DecodeFault      = faultpkg.Decode
	RequestException = faultpkg.RequestException
	Exception        = faultpkg.Exception

	// Builtin plugins
	DefaultPlugins  = runtimepkg.DefaultPlugins
	CallIDPlugin    = runtimepkg.CallIDPlugin
	AccessLogPlugin = runtimepkg.AccessLogPlugin
	TracerPlugin    = runtimepkg.TracerPlugin
	MetricsPlugin   = runtimepkg.MetricsPlugin
	ThrottlePlugin  = runtimepkg.ThrottlePlugin
	KeyAuthPlugin   = runtimepkg.KeyAuthPlugin
	RecovererPlugin = runtimepkg.RecovererPlugin

	// Codecs
	JSONCodec     = codecpkg.JSON
	RegisterCodec = codecpkg.Register
	GetCodec      = codecpkg.Get

	StatusOK = transportpkg.StatusOK

	NewCallID = idspkg.NewCallID

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewNopLogger         = loggingpkg.NewNopLogger

	ErrServiceRequired     = errspkg.ErrServiceRequired
	ErrDescriptionRequired = errspkg.ErrDescriptionRequired
	ErrLoggerRequired      = errspkg.ErrLoggerRequired
	ErrTransportRequired   = errspkg.ErrTransportRequired
	ErrHandlerRequired     = errspkg.ErrHandlerRequired
	ErrHandlerBound        = errspkg.ErrHandlerBound
	ErrUnknownOperation    = errspkg.ErrUnknownOperation
	ErrUnknownScope        = errspkg.ErrUnknownScope
	ErrPluginsSealed       = errspkg.ErrPluginsSealed
	ErrAlreadyProcessed    = errspkg.ErrAlreadyProcessed
	ErrContinueReinvoked   = errspkg.ErrContinueReinvoked
	ErrIndexOverrun        = errspkg.ErrIndexOverrun
	ErrInvalidResponse     = errspkg.ErrInvalidResponse
)

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}

// RegisterTypedOperation binds a struct-typed handler to the named
// operation, remapping declared fields through json tags.
func RegisterTypedOperation[In any, Out any](svc *Service, name string, handler TypedHandler[In, Out]) error {
	return runtimepkg.RegisterTypedOperation(svc, name, handler)
}
