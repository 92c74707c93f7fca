package bytecode

import (
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// BundleVersion is the current wire format version.
const BundleVersion = 1

// cborEncMode uses canonical mode so that equal methods encode to equal
// bytes, which makes encodings usable as snapshots.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Bundle is a set of classes shipped together.
type Bundle struct {
	Classes []*Class
}

// Class looks up a class by internal name.
func (b *Bundle) Class(name string) *Class {
	for _, c := range b.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Constant kinds on the wire.
const (
	constNone uint8 = iota
	constInt
	constLong
	constFloat
	constDouble
	constString
)

type wireConst struct {
	Kind uint8  `cbor:"1,keyasint"`
	Bits uint64 `cbor:"2,keyasint,omitempty"` // integers and IEEE bits
	Str  string `cbor:"3,keyasint,omitempty"`
}

type wireInsn struct {
	Op      uint8      `cbor:"1,keyasint"`
	Operand int32      `cbor:"2,keyasint,omitempty"`
	Var     int        `cbor:"3,keyasint,omitempty"`
	Const   *wireConst `cbor:"4,keyasint,omitempty"`
	Owner   string     `cbor:"5,keyasint,omitempty"`
	Name    string     `cbor:"6,keyasint,omitempty"`
	Desc    string     `cbor:"7,keyasint,omitempty"`
	Class   string     `cbor:"8,keyasint,omitempty"`
	Target  int        `cbor:"9,keyasint,omitempty"` // index+1, 0 = none
	Labels  []int      `cbor:"10,keyasint,omitempty"`
	Keys    []int32    `cbor:"11,keyasint,omitempty"`
	Low     int32      `cbor:"12,keyasint,omitempty"`
	Line    int        `cbor:"13,keyasint,omitempty"`
}

type wireTryCatch struct {
	Start   int    `cbor:"1,keyasint"`
	End     int    `cbor:"2,keyasint"`
	Handler int    `cbor:"3,keyasint"`
	Type    string `cbor:"4,keyasint,omitempty"`
}

type wireMethod struct {
	Owner     string         `cbor:"1,keyasint"`
	Name      string         `cbor:"2,keyasint"`
	Desc      string         `cbor:"3,keyasint"`
	Access    uint16         `cbor:"4,keyasint"`
	MaxLocals int            `cbor:"5,keyasint"`
	MaxStack  int            `cbor:"6,keyasint"`
	Insns     []wireInsn     `cbor:"7,keyasint"`
	TryCatch  []wireTryCatch `cbor:"8,keyasint,omitempty"`
}

type wireField struct {
	Name   string     `cbor:"1,keyasint"`
	Desc   string     `cbor:"2,keyasint"`
	Access uint16     `cbor:"3,keyasint"`
	Value  *wireConst `cbor:"4,keyasint,omitempty"`
}

type wireClass struct {
	Name    string       `cbor:"1,keyasint"`
	Super   string       `cbor:"2,keyasint,omitempty"`
	Access  uint16       `cbor:"3,keyasint"`
	Fields  []wireField  `cbor:"4,keyasint,omitempty"`
	Methods []wireMethod `cbor:"5,keyasint,omitempty"`
}

type wireBundle struct {
	Version uint8       `cbor:"1,keyasint"`
	Classes []wireClass `cbor:"2,keyasint"`
}

// MarshalMethod serializes a method to canonical CBOR bytes.
func MarshalMethod(m *Method) ([]byte, error) {
	w, err := encodeMethod(m)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// UnmarshalMethod deserializes a method from CBOR bytes.
func UnmarshalMethod(data []byte) (*Method, error) {
	var w wireMethod
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal method: %w", err)
	}
	return decodeMethod(&w)
}

// MarshalBundle serializes a bundle to canonical CBOR bytes.
func MarshalBundle(b *Bundle) ([]byte, error) {
	w := wireBundle{Version: BundleVersion}
	for _, c := range b.Classes {
		wc := wireClass{Name: c.Name, Super: c.Super, Access: uint16(c.Access)}
		for _, f := range c.Fields {
			wf := wireField{Name: f.Name, Desc: f.Desc, Access: uint16(f.Access)}
			if f.Value != nil {
				cst, err := encodeConst(f.Value)
				if err != nil {
					return nil, fmt.Errorf("bytecode: field %s.%s: %w", c.Name, f.Name, err)
				}
				wf.Value = cst
			}
			wc.Fields = append(wc.Fields, wf)
		}
		for _, m := range c.Methods {
			wm, err := encodeMethod(m)
			if err != nil {
				return nil, err
			}
			wc.Methods = append(wc.Methods, *wm)
		}
		w.Classes = append(w.Classes, wc)
	}
	return cborEncMode.Marshal(&w)
}

// UnmarshalBundle deserializes a bundle from CBOR bytes.
func UnmarshalBundle(data []byte) (*Bundle, error) {
	var w wireBundle
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal bundle: %w", err)
	}
	if w.Version != BundleVersion {
		return nil, fmt.Errorf("bytecode: unsupported bundle version %d", w.Version)
	}
	b := &Bundle{}
	for i := range w.Classes {
		wc := &w.Classes[i]
		c := &Class{Name: wc.Name, Super: wc.Super, Access: Access(wc.Access)}
		for _, wf := range wc.Fields {
			f := &Field{Name: wf.Name, Desc: wf.Desc, Access: Access(wf.Access)}
			if wf.Value != nil {
				v, err := decodeConst(wf.Value)
				if err != nil {
					return nil, err
				}
				f.Value = v
			}
			c.Fields = append(c.Fields, f)
		}
		for j := range wc.Methods {
			m, err := decodeMethod(&wc.Methods[j])
			if err != nil {
				return nil, err
			}
			c.Methods = append(c.Methods, m)
		}
		b.Classes = append(b.Classes, c)
	}
	return b, nil
}

// CloneMethod returns a deep copy of m with fresh instructions.
func CloneMethod(m *Method) (*Method, error) {
	data, err := MarshalMethod(m)
	if err != nil {
		return nil, err
	}
	return UnmarshalMethod(data)
}

func encodeMethod(m *Method) (*wireMethod, error) {
	list := m.Instructions
	ref := func(l *Insn) (int, error) {
		if l == nil {
			return 0, nil
		}
		i := list.IndexOf(l)
		if i < 0 {
			return 0, fmt.Errorf("bytecode: %s references a label outside its list", m)
		}
		return i + 1, nil
	}

	w := &wireMethod{
		Owner:     m.Owner,
		Name:      m.Name,
		Desc:      m.Desc,
		Access:    uint16(m.Access),
		MaxLocals: m.MaxLocals,
		MaxStack:  m.MaxStack,
		Insns:     make([]wireInsn, 0, list.Len()),
	}
	for insn := list.First(); insn != nil; insn = insn.Next() {
		wi := wireInsn{
			Op:      uint8(insn.Op),
			Operand: insn.Operand,
			Var:     insn.Var,
			Owner:   insn.Owner,
			Name:    insn.Name,
			Desc:    insn.Desc,
			Class:   insn.Class,
			Keys:    insn.Keys,
			Low:     insn.Low,
			Line:    insn.Line,
		}
		if insn.Op == OpLdc {
			cst, err := encodeConst(insn.Const)
			if err != nil {
				return nil, fmt.Errorf("bytecode: %s: %w", m, err)
			}
			wi.Const = cst
		}
		t, err := ref(insn.Target)
		if err != nil {
			return nil, err
		}
		wi.Target = t
		for _, l := range insn.Labels {
			n, err := ref(l)
			if err != nil {
				return nil, err
			}
			wi.Labels = append(wi.Labels, n)
		}
		w.Insns = append(w.Insns, wi)
	}
	for _, tcb := range m.TryCatchBlocks {
		start, err := ref(tcb.Start)
		if err != nil {
			return nil, err
		}
		end, err := ref(tcb.End)
		if err != nil {
			return nil, err
		}
		handler, err := ref(tcb.Handler)
		if err != nil {
			return nil, err
		}
		w.TryCatch = append(w.TryCatch, wireTryCatch{Start: start, End: end, Handler: handler, Type: tcb.Type})
	}
	return w, nil
}

func decodeMethod(w *wireMethod) (*Method, error) {
	m := NewMethod(w.Owner, w.Name, w.Desc, Access(w.Access))
	m.MaxLocals = w.MaxLocals
	m.MaxStack = w.MaxStack

	insns := make([]*Insn, len(w.Insns))
	for i := range w.Insns {
		wi := &w.Insns[i]
		insns[i] = &Insn{
			Op:      Opcode(wi.Op),
			Operand: wi.Operand,
			Var:     wi.Var,
			Owner:   wi.Owner,
			Name:    wi.Name,
			Desc:    wi.Desc,
			Class:   wi.Class,
			Keys:    wi.Keys,
			Low:     wi.Low,
			Line:    wi.Line,
		}
		if wi.Const != nil {
			v, err := decodeConst(wi.Const)
			if err != nil {
				return nil, err
			}
			insns[i].Const = v
		}
	}
	deref := func(n int) (*Insn, error) {
		if n == 0 {
			return nil, nil
		}
		if n < 1 || n > len(insns) || insns[n-1].Op != OpLabel {
			return nil, fmt.Errorf("bytecode: %s.%s%s: bad label reference %d", w.Owner, w.Name, w.Desc, n)
		}
		return insns[n-1], nil
	}
	for i := range w.Insns {
		wi := &w.Insns[i]
		t, err := deref(wi.Target)
		if err != nil {
			return nil, err
		}
		insns[i].Target = t
		for _, n := range wi.Labels {
			l, err := deref(n)
			if err != nil {
				return nil, err
			}
			insns[i].Labels = append(insns[i].Labels, l)
		}
		m.Instructions.Add(insns[i])
	}
	for _, wt := range w.TryCatch {
		start, err := deref(wt.Start)
		if err != nil {
			return nil, err
		}
		end, err := deref(wt.End)
		if err != nil {
			return nil, err
		}
		handler, err := deref(wt.Handler)
		if err != nil {
			return nil, err
		}
		m.TryCatchBlocks = append(m.TryCatchBlocks, &TryCatchBlock{Start: start, End: end, Handler: handler, Type: wt.Type})
	}
	return m, nil
}

func encodeConst(c any) (*wireConst, error) {
	switch v := c.(type) {
	case int32:
		return &wireConst{Kind: constInt, Bits: uint64(uint32(v))}, nil
	case int64:
		return &wireConst{Kind: constLong, Bits: uint64(v)}, nil
	case float32:
		return &wireConst{Kind: constFloat, Bits: uint64(math.Float32bits(v))}, nil
	case float64:
		return &wireConst{Kind: constDouble, Bits: math.Float64bits(v)}, nil
	case string:
		return &wireConst{Kind: constString, Str: v}, nil
	case nil:
		return &wireConst{Kind: constNone}, nil
	}
	return nil, fmt.Errorf("unsupported constant type %T", c)
}

func decodeConst(w *wireConst) (any, error) {
	switch w.Kind {
	case constNone:
		return nil, nil
	case constInt:
		return int32(uint32(w.Bits)), nil
	case constLong:
		return int64(w.Bits), nil
	case constFloat:
		return math.Float32frombits(uint32(w.Bits)), nil
	case constDouble:
		return math.Float64frombits(w.Bits), nil
	case constString:
		return w.Str, nil
	}
	return nil, fmt.Errorf("bytecode: unknown constant kind %d", w.Kind)
}
