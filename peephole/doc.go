/*
Package peephole folds constant computations into literals while a VM
simulates method bodies.

Install replaces the VM's processors with ones that attach provenance to
every value they push: which instructions produced it, which locals it
passed through, which values it was duplicated from. When an arithmetic or
conversion instruction, a static call, or a String construction consumes
only constants, the overlay rewrites the method in place: every instruction
that fed the computation becomes a NOP and the consuming instruction becomes
a single literal push.

A rewrite only happens when it provably preserves behaviour. Contributing
instructions must sit in a straight-line region of the same method before
the rewritten instruction, with no jump target or exception handler in
between, and no duplicate of a consumed value may still be live elsewhere.
Otherwise the result is tracked as a constant without rewriting, so an
enclosing computation can still fold it later.

Static calls always execute once with their real semantics; only calls to
pure methods are replaced by their result.

	v := vm.New()
	v.DefineBundle(bundle)
	o := peephole.Install(v, peephole.Methods("demo/*"))
	v.InvokeStatic("demo/Calc", "compute", "()I")
	fmt.Println(o.Stats().Folds())

Instructions are never removed, only replaced, so jump targets and
exception ranges stay valid across any number of folds.
*/
package peephole
