package ir

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// The YAML program format is the hand-off point from the front end:
// one document listing the roots and every function body, blocks in
// layout order, instructions as tagged mappings. The first block of a
// function is its entry.

var regNames = map[string]Reg{
	"r0": R0, "r1": R1, "r2": R2, "r3": R3, "r4": R4,
	"r5": R5, "r6": R6, "r7": R7, "r8": R8, "r9": R9,
	"fp": FP,
}

var cmpNames = func() map[string]Cmp {
	m := map[string]Cmp{}
	for op, s := range cmpStrings {
		m[s] = op
	}
	return m
}()

var binOpNames = func() map[string]BinOp {
	m := map[string]BinOp{}
	for op, s := range binOpStrings {
		m[s] = op
	}
	return m
}()

// operandNode decodes either a register name or an immediate.
type operandNode struct {
	op Operand
}

func (o *operandNode) UnmarshalYAML(n *yaml.Node) error {
	if r, ok := regNames[n.Value]; ok {
		o.op = r
		return nil
	}
	var v int64
	if err := n.Decode(&v); err != nil {
		return fmt.Errorf("operand %q is neither a register nor an immediate", n.Value)
	}
	o.op = Imm(v)
	return nil
}

type condNode struct {
	X   string       `yaml:"x"`
	Cmp string       `yaml:"cmp"`
	Y   *operandNode `yaml:"y"`
}

type instrNode struct {
	Op     string       `yaml:"op"`
	Aop    string       `yaml:"aop"`
	Dst    string       `yaml:"dst"`
	Src    *operandNode `yaml:"src"`
	Base   string       `yaml:"base"`
	Off    int64        `yaml:"off"`
	Width  uint32       `yaml:"width"`
	Callee string       `yaml:"callee"`
	X      string       `yaml:"x"`
	Y      *operandNode `yaml:"y"`
	Val    *operandNode `yaml:"val"`
	Len    *operandNode `yaml:"len"`
	Cond   *condNode    `yaml:"cond"`
}

type termNode struct {
	Op   string    `yaml:"op"`
	To   BlockID   `yaml:"to"`
	Then BlockID   `yaml:"then"`
	Else BlockID   `yaml:"else"`
	Cond *condNode `yaml:"cond"`
}

type blockNode struct {
	ID     BlockID     `yaml:"id"`
	Instrs []instrNode `yaml:"instrs"`
	Term   *termNode   `yaml:"term"`
}

type funcNode struct {
	Name   string      `yaml:"name"`
	Frame  int64       `yaml:"frame"`
	Blocks []blockNode `yaml:"blocks"`
}

type programNode struct {
	Roots     []string   `yaml:"roots"`
	Functions []funcNode `yaml:"functions"`
}

func regNamed(name, what string) (Reg, error) {
	r, ok := regNames[name]
	if !ok {
		return 0, fmt.Errorf("%s: unknown register %q", what, name)
	}
	return r, nil
}

func operandOf(o *operandNode, what string) (Operand, error) {
	if o == nil {
		return nil, fmt.Errorf("%s: missing operand", what)
	}
	return o.op, nil
}

func regOperandOf(o *operandNode, what string) (Reg, error) {
	op, err := operandOf(o, what)
	if err != nil {
		return 0, err
	}
	r, ok := op.(Reg)
	if !ok {
		return 0, fmt.Errorf("%s: expected a register, got %s", what, op)
	}
	return r, nil
}

func (n *condNode) build(what string) (Cond, error) {
	if n == nil {
		return Cond{}, fmt.Errorf("%s: missing condition", what)
	}
	x, err := regNamed(n.X, what)
	if err != nil {
		return Cond{}, err
	}
	op, ok := cmpNames[n.Cmp]
	if !ok {
		return Cond{}, fmt.Errorf("%s: unknown comparison %q", what, n.Cmp)
	}
	y, err := operandOf(n.Y, what)
	if err != nil {
		return Cond{}, err
	}
	return Cond{X: x, Op: op, Y: y}, nil
}

func (n instrNode) build(what string) (Instruction, error) {
	switch n.Op {
	case "assign":
		dst, err := regNamed(n.Dst, what)
		if err != nil {
			return nil, err
		}
		src, err := operandOf(n.Src, what)
		if err != nil {
			return nil, err
		}
		return Assign{Dst: dst, Src: src}, nil

	case "bin":
		op, ok := binOpNames[n.Aop]
		if !ok {
			return nil, fmt.Errorf("%s: unknown operation %q", what, n.Aop)
		}
		dst, err := regNamed(n.Dst, what)
		if err != nil {
			return nil, err
		}
		x, err := regNamed(n.X, what)
		if err != nil {
			return nil, err
		}
		y, err := operandOf(n.Y, what)
		if err != nil {
			return nil, err
		}
		return Bin{Op: op, Dst: dst, X: x, Y: y}, nil

	case "load":
		dst, err := regNamed(n.Dst, what)
		if err != nil {
			return nil, err
		}
		base, err := regNamed(n.Base, what)
		if err != nil {
			return nil, err
		}
		return Load{Dst: dst, Base: base, Off: n.Off, Width: n.Width}, nil

	case "store":
		base, err := regNamed(n.Base, what)
		if err != nil {
			return nil, err
		}
		src, err := operandOf(n.Src, what)
		if err != nil {
			return nil, err
		}
		return Store{Base: base, Off: n.Off, Width: n.Width, Src: src}, nil

	case "call":
		if n.Callee == "" {
			return nil, fmt.Errorf("%s: call without callee", what)
		}
		return Call{Callee: n.Callee}, nil

	case "memcpy":
		dst, err := regNamed(n.Dst, what)
		if err != nil {
			return nil, err
		}
		src, err := regOperandOf(n.Src, what)
		if err != nil {
			return nil, err
		}
		ln, err := operandOf(n.Len, what)
		if err != nil {
			return nil, err
		}
		return MemCpy{Dst: dst, Src: src, Len: ln}, nil

	case "memcmp":
		x, err := regNamed(n.X, what)
		if err != nil {
			return nil, err
		}
		y, err := regOperandOf(n.Y, what)
		if err != nil {
			return nil, err
		}
		ln, err := operandOf(n.Len, what)
		if err != nil {
			return nil, err
		}
		return MemCmp{X: x, Y: y, Len: ln}, nil

	case "memset":
		dst, err := regNamed(n.Dst, what)
		if err != nil {
			return nil, err
		}
		val, err := operandOf(n.Val, what)
		if err != nil {
			return nil, err
		}
		ln, err := operandOf(n.Len, what)
		if err != nil {
			return nil, err
		}
		return MemSet{Dst: dst, Val: val, Len: ln}, nil

	case "assume":
		cond, err := n.Cond.build(what)
		if err != nil {
			return nil, err
		}
		return Assume{Cond: cond}, nil

	case "assert":
		cond, err := n.Cond.build(what)
		if err != nil {
			return nil, err
		}
		return Assert{Cond: cond}, nil
	}
	return nil, fmt.Errorf("%s: unknown instruction %q", what, n.Op)
}

func (n *termNode) build(what string) (Terminator, error) {
	if n == nil {
		return Exit{}, nil
	}
	switch n.Op {
	case "exit":
		return Exit{}, nil
	case "jump":
		return Jump{To: n.To}, nil
	case "if":
		cond, err := n.Cond.build(what)
		if err != nil {
			return nil, err
		}
		return If{Cond: cond, Then: n.Then, Else: n.Else}, nil
	}
	return nil, fmt.Errorf("%s: unknown terminator %q", what, n.Op)
}

func (n funcNode) build() (*Function, error) {
	if n.Name == "" {
		return nil, fmt.Errorf("function without a name")
	}
	if len(n.Blocks) == 0 {
		return nil, fmt.Errorf("function %s has no blocks", n.Name)
	}
	f := &Function{
		Name:      n.Name,
		FrameSize: n.Frame,
		Blocks:    map[BlockID]*Block{},
		Entry:     n.Blocks[0].ID,
	}
	for _, bn := range n.Blocks {
		if _, dup := f.Blocks[bn.ID]; dup {
			return nil, fmt.Errorf("duplicate block b%d in %s", bn.ID, n.Name)
		}
		b := &Block{ID: bn.ID}
		for i, in := range bn.Instrs {
			what := fmt.Sprintf("%s b%d:%d", n.Name, bn.ID, i)
			ins, err := in.build(what)
			if err != nil {
				return nil, err
			}
			b.Instrs = append(b.Instrs, ins)
		}
		term, err := bn.Term.build(fmt.Sprintf("%s b%d", n.Name, bn.ID))
		if err != nil {
			return nil, err
		}
		b.Term = term
		f.Blocks[b.ID] = b
		if bn.ID >= f.nextID {
			f.nextID = bn.ID + 1
		}
	}
	return f, nil
}

// Decode reads a program from its YAML form and validates its
// structure.
func Decode(r io.Reader) (*Program, error) {
	var pn programNode
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pn); err != nil {
		return nil, fmt.Errorf("parsing program: %w", err)
	}

	p := NewProgram()
	p.Roots = pn.Roots
	for _, fn := range pn.Functions {
		f, err := fn.build()
		if err != nil {
			return nil, err
		}
		if _, dup := p.Funcs[f.Name]; dup {
			return nil, fmt.Errorf("duplicate function %s", f.Name)
		}
		p.AddFunction(f)
	}
	if err := p.CheckStructure(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile reads a program from a YAML file.
func LoadFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
