// Package driver orchestrates the whole pipeline: call-graph pruning,
// inlining, the per-function fixpoint over the combined scalar and
// points-to domains, and the final lowering pass. Functions are
// analyzed concurrently; each analysis is independent and a failure
// in one never blocks the others.
package driver

import (
	"fmt"
	"sort"
	"sync"

	"github.com/verikit/memsplit/analysis/callgraph"
	"github.com/verikit/memsplit/analysis/fixpoint"
	"github.com/verikit/memsplit/analysis/inline"
	"github.com/verikit/memsplit/analysis/ir"
	"github.com/verikit/memsplit/analysis/memory"
	"github.com/verikit/memsplit/analysis/scalar"
	"github.com/verikit/memsplit/analysis/splitter"
	"github.com/verikit/memsplit/analysis/summaries"
	"github.com/verikit/memsplit/config"
)

// FunctionResult is the outcome of analyzing one function.
type FunctionResult struct {
	Name string
	// Decisions is the lowering of every reachable memory instruction;
	// nil when Err is set.
	Decisions splitter.Decisions
	// Iterations counts fixpoint block visits.
	Iterations int
	// Err is the translation failure of this function, if any.
	Err error
}

// Result is the outcome of a whole run.
type Result struct {
	// Functions maps every analyzed function to its result.
	Functions map[string]*FunctionResult
	// Inlined reports what the inliner did.
	Inlined inline.Stats
}

// Failed returns the names of functions whose analysis errored, in
// sorted order.
func (r *Result) Failed() []string {
	var names []string
	for name, fr := range r.Functions {
		if fr.Err != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Run executes the pipeline over the program. The program is rewritten
// in place by pruning and inlining before any fixpoint starts.
func Run(prog *ir.Program, cfg *config.Config, log *config.LogGroup) (*Result, error) {
	if err := prog.CheckStructure(); err != nil {
		return nil, fmt.Errorf("malformed input program: %w", err)
	}

	var sums *summaries.Table
	if cfg.SummaryFile != "" {
		var err error
		if sums, err = summaries.LoadFile(cfg.SummaryFile); err != nil {
			return nil, err
		}
	}

	g := callgraph.Prune(prog, cfg.PreserveList)
	log.Debugf("call graph after pruning:\n%s", g)

	stats, err := inline.Run(prog, g)
	if err != nil {
		return nil, err
	}
	log.Infof("inlined %d call sites (%d skipped)", stats.Sites, stats.Skipped)
	// Fully inlined callees may have become unreachable.
	g = callgraph.Prune(prog, cfg.PreserveList)

	res := &Result{
		Functions: map[string]*FunctionResult{},
		Inlined:   stats,
	}
	var mu sync.Mutex
	var wg sync.WaitGroup
	names := make(chan string)

	for i := 0; i < cfg.NumJobs(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range names {
				fr := analyzeOne(prog.Func(name), cfg, sums, log)
				mu.Lock()
				res.Functions[name] = fr
				mu.Unlock()
			}
		}()
	}
	for _, name := range g.Funcs() {
		names <- name
	}
	close(names)
	wg.Wait()

	for _, name := range res.Failed() {
		log.Warnf("analysis of %s failed: %v", name, res.Functions[name].Err)
	}
	return res, nil
}

// analyzeOne runs the fixpoint and the lowering pass for one function.
// Panics are contained and surfaced as that function's error.
func analyzeOne(fn *ir.Function, cfg *config.Config, sums *summaries.Table, log *config.LogGroup) (fr *FunctionResult) {
	fr = &FunctionResult{Name: fn.Name}
	defer func() {
		if r := recover(); r != nil {
			fr.Err = fmt.Errorf("analysis of %s panicked: %v", fn.Name, r)
		}
	}()

	tr := memory.NewTransfer(fn, sums, cfg.OptimisticOverlap)
	if cfg.MaxOffsets > 0 {
		tr.MaxOffsets = cfg.MaxOffsets
	}
	a := &analysis{
		ip: scalar.NewInterp(cfg.TagMaskSet()),
		tr: tr,
	}

	res, err := fixpoint.Run[state](fn, a, a, fixpoint.Config{
		WideningThreshold: cfg.WideningThreshold,
	})
	if err != nil {
		fr.Err = err
		return fr
	}
	fr.Iterations = res.Iterations
	log.Debugf("%s stabilized after %d block visits", fn.Name, res.Iterations)

	in := make(map[ir.InstrRef]splitter.Input, len(res.InstrIn))
	for ref, s := range res.InstrIn {
		in[ref] = splitter.Input{Mem: s.mem, Scal: s.sc}
	}
	dec, err := splitter.Run(fn, tr, in, cfg.WordSize)
	if err != nil {
		fr.Err = err
		return fr
	}
	fr.Decisions = dec
	log.Tracef("lowering of %s:\n%s", fn.Name, dec)
	return fr
}

// state pairs the two abstract domains at one program point. The
// memory transfer reads scalar facts (constant offsets and lengths),
// never the other way around.
type state struct {
	sc  scalar.State
	mem memory.State
}

// analysis adapts the domain pair to the fixpoint interfaces.
type analysis struct {
	ip scalar.Interp
	tr *memory.Transfer
}

func (a *analysis) Entry() state {
	return state{sc: scalar.Initial(), mem: memory.Initial()}
}

func (a *analysis) Join(x, y state) state {
	return state{
		sc:  x.sc.MonoJoin(y.sc),
		mem: x.mem.MonoJoin(y.mem, a.tr.Arena),
	}
}

func (a *analysis) Widen(x, y state) state {
	return state{
		sc:  x.sc.Widen(y.sc),
		mem: x.mem.Widen(y.mem, a.tr.Arena),
	}
}

func (a *analysis) Leq(x, y state) bool {
	return x.sc.Leq(y.sc) && x.mem.Leq(y.mem, a.tr.Arena)
}

func (a *analysis) Instr(s state, ref ir.InstrRef, ins ir.Instruction) (state, error) {
	mem, err := a.tr.Step(s.mem, s.sc, ref, ins)
	if err != nil {
		return s, err
	}
	return state{sc: a.ip.Step(s.sc, ins), mem: mem}, nil
}

func (a *analysis) Branch(s state, cond ir.Cond, taken bool) state {
	sc := a.ip.StepBranch(s.sc, cond, taken)
	if sc.IsBot() {
		// An infeasible edge carries no memory state either.
		return state{sc: sc, mem: memory.Bot()}
	}
	return state{sc: sc, mem: s.mem}
}
