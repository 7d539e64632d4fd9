package ir

import "sort"

// Program is a whole-program collection of function CFGs together with
// the analysis entry points.
type Program struct {
	Funcs map[string]*Function
	// Roots are the entry points reachability is computed from.
	Roots []string
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{Funcs: map[string]*Function{}}
}

// AddFunction registers a function body under its name.
func (p *Program) AddFunction(f *Function) {
	p.Funcs[f.Name] = f
}

// Func returns the named function body, or nil for external functions
// (those are modeled through memory summaries instead).
func (p *Program) Func(name string) *Function {
	return p.Funcs[name]
}

// FuncNames returns all defined function names in deterministic order.
func (p *Program) FuncNames() []string {
	names := make([]string, 0, len(p.Funcs))
	for name := range p.Funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckStructure validates the structural invariants of every function.
func (p *Program) CheckStructure() error {
	for _, name := range p.FuncNames() {
		if err := p.Funcs[name].CheckStructure(); err != nil {
			return err
		}
	}
	return nil
}
