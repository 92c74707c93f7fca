package main

import (
	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/vm"
)

const sampleEntry = "demo/Calc.main()V"

// sampleBundle is run when no bundle is given. Every statement in main has
// a foldable core except the clock read.
func sampleBundle() *bytecode.Bundle {
	const owner = "demo/Calc"
	static := func(name, desc string) *bytecode.Builder {
		return bytecode.NewBuilder(owner, name, desc, bytecode.AccPublic|bytecode.AccStatic)
	}
	out := func(b *bytecode.Builder) *bytecode.Builder {
		return b.Field(bytecode.OpGetstatic, "java/lang/System", "out", "Ljava/io/PrintStream;")
	}
	printLine := func(b *bytecode.Builder, desc string) *bytecode.Builder {
		return b.Invoke(bytecode.OpInvokevirtual, vm.PrintStreamClass, "println", desc)
	}

	body := out(static("main", "()V")).
		Push(int32(1)).Push(int32(2)).Insn(bytecode.OpIadd).Push(int32(3)).Insn(bytecode.OpImul)
	printLine(body, "(I)V")

	out(body).Type(bytecode.OpNew, vm.StringClass).Insn(bytecode.OpDup)
	text := "peephole"
	body.Push(int32(len(text))).Int(bytecode.OpNewarray, bytecode.TByte)
	for i := 0; i < len(text); i++ {
		body.Insn(bytecode.OpDup).Push(int32(i)).Push(int32(text[i])).Insn(bytecode.OpBastore)
	}
	body.Invoke(bytecode.OpInvokespecial, vm.StringClass, "<init>", "([B)V")
	printLine(body, "(Ljava/lang/String;)V")

	out(body).Push(2.0).Push(10.0).
		Invoke(bytecode.OpInvokestatic, "java/lang/Math", "pow", "(DD)D").Insn(bytecode.OpD2i)
	printLine(body, "(I)V")

	out(body).Push(int32(12)).Invoke(bytecode.OpInvokestatic, owner, "square", "(I)I")
	printLine(body, "(I)V")

	out(body).Invoke(bytecode.OpInvokestatic, "java/lang/System", "currentTimeMillis", "()J").
		Push(int64(1000)).Insn(bytecode.OpLdiv)
	printLine(body, "(J)V")
	body.Insn(bytecode.OpReturn)

	square := static("square", "(I)I").Var(bytecode.OpIload, 0).Insn(bytecode.OpDup, bytecode.OpImul, bytecode.OpIreturn)

	c := bytecode.NewClass(owner)
	c.AddMethod(body.Build())
	c.AddMethod(square.Build())
	return &bytecode.Bundle{Classes: []*bytecode.Class{c}}
}
