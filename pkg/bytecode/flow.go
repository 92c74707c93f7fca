package bytecode

// JoinPoints returns the labels at which control flow can arrive from
// somewhere other than the preceding instruction: jump and switch targets
// and exception handlers.
func JoinPoints(m *Method) map[*Insn]bool {
	joins := make(map[*Insn]bool)
	for insn := m.Instructions.First(); insn != nil; insn = insn.Next() {
		switch insn.Op.Form() {
		case FormJump:
			joins[insn.Target] = true
		case FormTableSwitch, FormLookupSwitch:
			joins[insn.Target] = true
			for _, l := range insn.Labels {
				joins[l] = true
			}
		}
	}
	for _, tcb := range m.TryCatchBlocks {
		joins[tcb.Handler] = true
	}
	return joins
}

// HandlerFor returns the innermost exception table entry covering index
// whose type satisfies matches, or nil. Entries are searched in table order,
// as the JVM does.
func HandlerFor(m *Method, index int, matches func(catchType string) bool) *TryCatchBlock {
	list := m.Instructions
	for _, tcb := range m.TryCatchBlocks {
		start, end := list.IndexOf(tcb.Start), list.IndexOf(tcb.End)
		if start < 0 || end < 0 || index < start || index >= end {
			continue
		}
		if tcb.Type == "" || matches(tcb.Type) {
			return tcb
		}
	}
	return nil
}
