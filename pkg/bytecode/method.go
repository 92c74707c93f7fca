package bytecode

// Access holds class, field and method access flags.
type Access uint16

const (
	AccPublic  Access = 0x0001
	AccPrivate Access = 0x0002
	AccStatic  Access = 0x0008
	AccFinal   Access = 0x0010
	AccNative  Access = 0x0100
)

// TryCatchBlock is one exception table entry. Start (inclusive), End
// (exclusive) and Handler are labels in the owning method's list.
// An empty Type catches everything.
type TryCatchBlock struct {
	Start   *Insn
	End     *Insn
	Handler *Insn
	Type    string
}

// Method is a method body: descriptor, frame sizes, instructions and
// exception table.
type Method struct {
	Owner  string
	Name   string
	Desc   string
	Access Access

	MaxLocals int
	MaxStack  int

	Instructions   *InsnList
	TryCatchBlocks []*TryCatchBlock
}

// NewMethod creates an empty method.
func NewMethod(owner, name, desc string, access Access) *Method {
	return &Method{
		Owner:        owner,
		Name:         name,
		Desc:         desc,
		Access:       access,
		Instructions: NewInsnList(),
	}
}

// IsStatic returns true if the method has no receiver.
func (m *Method) IsStatic() bool {
	return m.Access&AccStatic != 0
}

// Key returns name+descriptor, unique within a class.
func (m *Method) Key() string {
	return m.Name + m.Desc
}

// String returns owner.name+descriptor.
func (m *Method) String() string {
	return m.Owner + "." + m.Name + m.Desc
}

// Field is a declared field. Value is the initial value of a static field
// (ConstantValue attribute), or nil for the type's default.
type Field struct {
	Name   string
	Desc   string
	Access Access
	Value  any
}

// IsStatic returns true for class-level fields.
func (f *Field) IsStatic() bool {
	return f.Access&AccStatic != 0
}

// Class is a class definition.
type Class struct {
	Name    string
	Super   string
	Access  Access
	Fields  []*Field
	Methods []*Method
}

// NewClass creates an empty class extending java/lang/Object.
func NewClass(name string) *Class {
	return &Class{Name: name, Super: "java/lang/Object", Access: AccPublic}
}

// Method finds a method by name and descriptor.
func (c *Class) Method(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// AddMethod appends m, setting its owner.
func (c *Class) AddMethod(m *Method) {
	m.Owner = c.Name
	c.Methods = append(c.Methods, m)
}
