package diagnostic

// Diagnostic is the per-component logging contract every package that talks
// to a broker accepts instead of a bare Logger: WithContext binds fields
// (node id, topic, group id, ...) that get attached to every subsequent
// message from the derived Diagnostic, mirroring how services/kafka's own
// Diagnostic interface was shaped in the host application this was adapted
// from.
type Diagnostic interface {
	WithContext(fields ...Field) Diagnostic
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
}

// handler adapts a Logger into a Diagnostic. It is the single concrete
// implementation every component (conn, pool, metadata, producer, consumer,
// group) is handed; component-specific behavior lives in the fields passed
// to WithContext, not in separate handler types.
type handler struct {
	l Logger
}

func NewHandler(l Logger) Diagnostic {
	return &handler{l: l}
}

func (h *handler) WithContext(fields ...Field) Diagnostic {
	return &handler{l: h.l.With(fields...)}
}

func (h *handler) Debug(msg string, fields ...Field) {
	h.l.Debug(msg, fields...)
}

func (h *handler) Info(msg string, fields ...Field) {
	h.l.Info(msg, fields...)
}

func (h *handler) Warn(msg string, fields ...Field) {
	h.l.Warn(msg, fields...)
}

func (h *handler) Error(msg string, err error, fields ...Field) {
	h.l.Error(msg, append(fields, Error(err))...)
}

// Discard is a Diagnostic that drops every message; the zero value for
// tests and callers that don't care about logging.
var Discard Diagnostic = NewHandler(&discardLogger{})

type discardLogger struct{}

func (discardLogger) Error(string, ...Field)   {}
func (discardLogger) Warn(string, ...Field)    {}
func (discardLogger) Debug(string, ...Field)   {}
func (discardLogger) Info(string, ...Field)    {}
func (discardLogger) With(...Field) Logger     { return discardLogger{} }
