package markdoll

import "go.uber.org/zap"

// WithLogger installs logger for the engine's trace output. The parser logs
// frame push/pop and indent decisions at debug level, mirroring the
// `tracing::trace!` calls the original implementation's tree/parser.rs
// scatters through its indent loop. A library must stay silent unless a
// caller opts in, so the default (no WithLogger option) is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.log = logger.Sugar()
	}
}

func (e *Engine) trace(msg string, fields ...any) {
	e.log.Debugw(msg, fields...)
}
