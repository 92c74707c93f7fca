package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Faults: Java exceptions travelling as Go errors
// ---------------------------------------------------------------------------

var (
	ErrUnsupportedOpcode = errors.New("vm: unsupported opcode")
	ErrNoSuchClass       = errors.New("vm: no such class")
	ErrNoSuchMethod      = errors.New("vm: no such method")
	ErrFellOffEnd        = errors.New("vm: execution fell off the end of the method")
)

// Fault is a thrown Java exception. It unwinds frames until a try/catch
// handler of a matching type is found, and is returned to the host caller
// otherwise.
type Fault struct {
	Exception *Instance
}

func (f *Fault) Error() string {
	if msg, ok := f.Exception.Native.(string); ok && msg != "" {
		return f.Exception.class.Name + ": " + msg
	}
	return f.Exception.class.Name
}

// Class returns the runtime class of the thrown exception.
func (f *Fault) Class() *Class { return f.Exception.class }

// Message returns the detail message, or "".
func (f *Fault) Message() string {
	msg, _ := f.Exception.Native.(string)
	return msg
}

// NewFault creates a fault carrying a fresh instance of the named exception
// class. An unknown class yields a plain error, which still aborts execution.
func (v *VM) NewFault(class, msg string) error {
	c := v.FindClass(class)
	if c == nil {
		return fmt.Errorf("%w: %s (raising %q)", ErrNoSuchClass, class, msg)
	}
	ex := c.New()
	ex.Native = msg
	return &Fault{Exception: ex}
}

// AsFault extracts a *Fault from err.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
