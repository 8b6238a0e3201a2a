package log

// NopLogger discards everything. Used in tests and as a nil-safe default.
type NopLogger struct{}

// NewNop returns a logger that discards all entries.
func NewNop() Logger { return &NopLogger{} }

func (*NopLogger) Info(...any)           {}
func (*NopLogger) Infof(string, ...any)  {}
func (*NopLogger) Warn(...any)           {}
func (*NopLogger) Warnf(string, ...any)  {}
func (*NopLogger) Error(...any)          {}
func (*NopLogger) Errorf(string, ...any) {}
func (*NopLogger) Debug(...any)          {}
func (*NopLogger) Debugf(string, ...any) {}

func (n *NopLogger) WithFields(...any) Logger { return n }

func (*NopLogger) Sync() error { return nil }
