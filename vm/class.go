package vm

import (
	"fmt"

	"github.com/chazu/peephole/pkg/bytecode"
)

// NativeFunc implements a method in Go. Arguments arrive unwrapped, receiver
// first for instance methods. A nil result means void.
type NativeFunc func(ctx *ExecutionContext, args []Value) (Value, error)

// Method is a resolved, invocable method: either a bytecode body or a native.
type Method struct {
	Class  *Class
	Name   string
	Desc   string
	Static bool

	// Node is the mutable method body, nil for natives.
	Node *bytecode.Method

	Native NativeFunc
	// Pure natives have no side effects and depend only on their arguments.
	Pure bool

	args []bytecode.Type
	ret  bytecode.Type
}

func newMethod(c *Class, name, desc string, static bool) (*Method, error) {
	args, ret, err := bytecode.ParseMethodType(desc)
	if err != nil {
		return nil, fmt.Errorf("vm: %s.%s: %w", c.Name, name, err)
	}
	return &Method{Class: c, Name: name, Desc: desc, Static: static, args: args, ret: ret}, nil
}

// Args returns the declared argument types, receiver excluded.
func (m *Method) Args() []bytecode.Type { return m.args }

// Returns returns the declared return type.
func (m *Method) Returns() bytecode.Type { return m.ret }

// IsNative reports whether the method is implemented in Go.
func (m *Method) IsNative() bool { return m.Native != nil }

// String returns owner.name+descriptor.
func (m *Method) String() string {
	return m.Class.Name + "." + m.Name + m.Desc
}

// ---------------------------------------------------------------------------
// Class: runtime class with method table and static storage
// ---------------------------------------------------------------------------

// Class is a loaded class.
type Class struct {
	Name  string
	Super *Class
	Node  *bytecode.Class // nil for builtin classes

	methods map[string]*Method
	statics map[string]Value
	fields  []*bytecode.Field
}

func newClass(name string, super *Class) *Class {
	return &Class{
		Name:    name,
		Super:   super,
		methods: make(map[string]*Method),
		statics: make(map[string]Value),
	}
}

// DeclaredMethod finds a method declared by this class itself.
func (c *Class) DeclaredMethod(name, desc string) *Method {
	return c.methods[name+desc]
}

// Method finds a method in this class or its superclasses.
func (c *Class) Method(name, desc string) *Method {
	for k := c; k != nil; k = k.Super {
		if m := k.methods[name+desc]; m != nil {
			return m
		}
	}
	return nil
}

// IsSubclassOf reports whether c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.Super {
		if k == other {
			return true
		}
	}
	return false
}

// Static returns a static field, or nil when it does not exist.
func (c *Class) Static(name string) Value { return c.statics[name] }

// SetStatic stores a static field.
func (c *Class) SetStatic(name string, v Value) { c.statics[name] = Unwrap(v) }

// New allocates an instance with every declared instance field, including
// inherited ones, set to its zero value.
func (c *Class) New() *Instance {
	inst := &Instance{class: c}
	for k := c; k != nil; k = k.Super {
		for _, f := range k.fields {
			if f.IsStatic() {
				continue
			}
			if t, err := bytecode.ParseType(f.Desc); err == nil {
				inst.SetField(f.Name, ZeroValue(t))
			}
		}
	}
	return inst
}

// AddNative declares a method implemented in Go.
func (c *Class) AddNative(name, desc string, static, pure bool, fn NativeFunc) *Method {
	m, err := newMethod(c, name, desc, static)
	if err != nil {
		panic(err)
	}
	m.Native = fn
	m.Pure = pure
	c.methods[name+desc] = m
	return m
}

func (c *Class) addBytecode(node *bytecode.Method) error {
	m, err := newMethod(c, node.Name, node.Desc, node.IsStatic())
	if err != nil {
		return err
	}
	m.Node = node
	c.methods[node.Key()] = m
	return nil
}
