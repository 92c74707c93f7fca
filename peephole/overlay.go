package peephole

import (
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/peephole/journal"
	"github.com/chazu/peephole/pkg/bytecode"
	"github.com/chazu/peephole/track"
	"github.com/chazu/peephole/vm"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

type options struct {
	arithmetic     bool
	invocations    bool
	strings        bool
	deferNarrowing bool
	pure           []string
	recorder       journal.Recorder
}

// Option configures an Overlay.
type Option func(*options)

// WithArithmetic enables or disables arithmetic and conversion folds.
func WithArithmetic(on bool) Option {
	return func(o *options) { o.arithmetic = on }
}

// WithInvocations enables or disables static call folds.
func WithInvocations(on bool) Option {
	return func(o *options) { o.invocations = on }
}

// WithStrings enables or disables String construction folds.
func WithStrings(on bool) Option {
	return func(o *options) { o.strings = on }
}

// WithDeferNarrowing makes I2B, I2C and I2S track their result without
// rewriting, leaving the conversion to be removed by an enclosing fold.
func WithDeferNarrowing(on bool) Option {
	return func(o *options) { o.deferNarrowing = on }
}

// WithPure declares methods pure. Patterns match owner.name or
// owner.name+desc with path.Match syntax.
func WithPure(patterns ...string) Option {
	return func(o *options) { o.pure = append(o.pure, patterns...) }
}

// WithRecorder journals every fold to r.
func WithRecorder(r journal.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// ---------------------------------------------------------------------------
// Overlay
// ---------------------------------------------------------------------------

// Stats counts what an overlay did.
type Stats struct {
	Arithmetic  int // arithmetic and conversion folds
	Invocations int // static call folds
	Strings     int // String construction folds
	Removed     int // instructions turned into NOPs
	Deferred    int // constant results tracked without a rewrite
	Bailed      int // String folds abandoned
}

// Folds returns the total number of rewrites.
func (s Stats) Folds() int {
	return s.Arithmetic + s.Invocations + s.Strings
}

// Overlay is a set of processors and hooks installed into one VM that fold
// constant computations into literals while methods are simulated. Method
// bodies are rewritten in place.
type Overlay struct {
	vm        *vm.VM
	graph     *track.Graph
	whitelist Whitelist
	opts      options

	// original holds the processors that were installed before the overlay.
	original [256]vm.Processor

	joins  map[*bytecode.Method]map[*bytecode.Insn]bool
	purity map[*vm.Method]bool

	session string
	stats   Stats
	log     commonlog.Logger
}

// Install intercepts v's processors. Only frames accepted by whitelist are
// tracked and folded; a nil whitelist accepts none.
func Install(v *vm.VM, whitelist Whitelist, opts ...Option) *Overlay {
	o := &Overlay{
		vm:        v,
		graph:     track.NewGraph(),
		whitelist: whitelist,
		opts:      options{arithmetic: true, invocations: true, strings: true},
		joins:     make(map[*bytecode.Method]map[*bytecode.Insn]bool),
		purity:    make(map[*vm.Method]bool),
		session:   uuid.NewString(),
		log:       commonlog.GetLogger("peephole"),
	}
	for _, opt := range opts {
		opt(&o.opts)
	}
	for _, op := range bytecode.AllOpcodes() {
		o.original[op] = v.GetProcessor(op)
	}

	o.installTracking()
	if o.opts.arithmetic {
		o.installArithmetic()
	}
	if o.opts.invocations {
		v.SetProcessor(bytecode.OpInvokestatic, o.foldInvoke)
	}
	if o.opts.strings {
		v.OnMethodEntry(vm.StringClass, "<init>", "([B)V", o.foldString)
	}
	v.OnMethodExit(o.exit)
	return o
}

// Session returns the identifier stamped on this overlay's journal entries.
func (o *Overlay) Session() string { return o.session }

// Stats returns the counters accumulated so far.
func (o *Overlay) Stats() Stats { return o.stats }

// Graph returns the provenance arena. It is emptied whenever the outermost
// simulated frame exits.
func (o *Overlay) Graph() *track.Graph { return o.graph }

func (o *Overlay) allowed(ctx *vm.ExecutionContext) bool {
	return o.whitelist != nil && ctx != nil && ctx.Node() != nil && o.whitelist(ctx)
}

// exit releases per-simulation state once the bottom frame returns.
func (o *Overlay) exit(ctx *vm.ExecutionContext) {
	if o.vm.Backtrace().Count() != 1 {
		return
	}
	o.graph.Reset()
	for m := range o.joins {
		delete(o.joins, m)
	}
	for m := range o.purity {
		delete(o.purity, m)
	}
}

// tracked looks up the tracked form of v.
func (o *Overlay) tracked(v vm.Value) (*track.Value, bool) {
	return o.graph.Lookup(v)
}

func (o *Overlay) record(ctx *vm.ExecutionContext, kind string, site *bytecode.Insn, removed int, literal any) {
	m := ctx.Node()
	o.stats.Removed += removed
	o.log.Debugf("Folding %d instructions in %s", removed+1, m)
	if o.opts.recorder == nil {
		return
	}
	e := journal.Entry{
		Session: o.session,
		Owner:   m.Owner,
		Name:    m.Name,
		Desc:    m.Desc,
		Kind:    kind,
		Site:    m.Instructions.IndexOf(site),
		Removed: removed,
		Literal: bytecode.FormatConstant(literal),
		At:      time.Now(),
	}
	if err := o.opts.recorder.Record(e); err != nil {
		o.log.Warningf("journal: %s", err)
	}
}
