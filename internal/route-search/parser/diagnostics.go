package parser

import (
	"github.com/ytransit-data/internal/common/logger"
)

// Signal identifies a document-shape condition worth surfacing to operators.
// None of them are errors: the engine returns an empty result alongside them.
type Signal int

const (
	// ContainerNotFound means neither the route container nor the fallback island exists.
	ContainerNotFound Signal = iota
	// NoRouteFragments means the container exists but holds no routeNN children.
	NoRouteFragments
	// FallbackUnsupported means only the __NEXT_DATA__ island was found.
	FallbackUnsupported
	// MalformedFallbackPayload means the __NEXT_DATA__ island failed to decode.
	MalformedFallbackPayload
)

func (s Signal) String() string {
	switch s {
	case ContainerNotFound:
		return "container_not_found"
	case NoRouteFragments:
		return "no_route_fragments"
	case FallbackUnsupported:
		return "fallback_unsupported"
	case MalformedFallbackPayload:
		return "malformed_fallback_payload"
	default:
		return "unknown"
	}
}

// Diagnostic is a single report emitted while locating route fragments.
type Diagnostic struct {
	Signal  Signal
	Message string
	Err     error
	Fields  map[string]interface{}
}

// Sink receives diagnostics. Implementations must be safe for concurrent use
// when the same sink is shared between parses.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(d Diagnostic)

func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Discard drops every diagnostic.
var Discard Sink = SinkFunc(func(Diagnostic) {})

type multiSink []Sink

func (m multiSink) Report(d Diagnostic) {
	for _, s := range m {
		s.Report(d)
	}
}

// MultiSink fans a diagnostic out to every non-nil sink.
func MultiSink(sinks ...Sink) Sink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type logSink struct {
	log logger.Logger
}

// NewLogSink writes diagnostics to log. Missing containers are informational,
// an unsupported fallback is a warning and an undecodable fallback is an error.
func NewLogSink(log logger.Logger) Sink {
	return &logSink{log: log}
}

func (s *logSink) Report(d Diagnostic) {
	fields := []interface{}{"signal", d.Signal.String()}
	for k, v := range d.Fields {
		fields = append(fields, k, v)
	}
	if d.Err != nil {
		fields = append(fields, "error", d.Err)
	}

	switch d.Signal {
	case FallbackUnsupported:
		s.log.Warn(d.Message, fields...)
	case MalformedFallbackPayload:
		s.log.Error(d.Message, fields...)
	default:
		s.log.Info(d.Message, fields...)
	}
}
