package signal

import (
	"os"
	"sync"

	"github.com/reactivekit/notify/bind"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// PanicPolicy decides what happens when a handler panics during emission.
// Returning normally resumes the emission with the next handler; the policy
// may re-panic to abort the whole emission.
type PanicPolicy func(s *Signal, handler bind.Caller, recovered any)

// Abort wraps a panic value that must escape the emission even under the
// default policy.  Handlers panic with it to tear the whole emission (and
// whatever drives it) down.
type Abort struct {
	Reason any
}

var (
	policyMu    sync.Mutex
	panicPolicy PanicPolicy = ReportAndContinue
	logger                  = newDefaultLogger()
)

// SetPanicPolicy replaces the policy applied to handler panics.  A nil
// policy restores the default ReportAndContinue.
func SetPanicPolicy(p PanicPolicy) {
	if p == nil {
		p = ReportAndContinue
	}
	policyMu.Lock()
	panicPolicy = p
	policyMu.Unlock()
}

func currentPolicy() PanicPolicy {
	policyMu.Lock()
	defer policyMu.Unlock()
	return panicPolicy
}

// SetLogger replaces the logger used by ReportAndContinue.  A nil logger is
// ignored.
func SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	policyMu.Lock()
	logger = l
	policyMu.Unlock()
}

func currentLogger() *zap.Logger {
	policyMu.Lock()
	defer policyMu.Unlock()
	return logger
}

func newDefaultLogger() *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stderr),
		zapcore.ErrorLevel,
	)
	return zap.New(core)
}

// ReportAndContinue is the default policy: Abort values propagate, anything
// else is logged and the emission continues with the next handler.
func ReportAndContinue(s *Signal, handler bind.Caller, recovered any) {
	if a, ok := recovered.(Abort); ok {
		panic(a)
	}
	currentLogger().Error("signal handler panicked",
		zap.Any("panic", recovered),
		zap.Stack("stack"))
}

// Ignore swallows every handler panic, Abort included.
func Ignore(*Signal, bind.Caller, any) {}

// Reraise propagates every handler panic out of the emission.
func Reraise(_ *Signal, _ bind.Caller, recovered any) {
	panic(recovered)
}
