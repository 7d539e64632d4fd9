package splitter

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/verikit/memsplit/analysis/ir"
	"github.com/verikit/memsplit/analysis/memory"
)

// The pretty-printed decision table is consumed by humans debugging a
// lowering; pin its shape.
func TestDecisionsGolden(t *testing.T) {
	fn := straightLine("f", 32,
		ir.Store{Base: ir.FP, Off: -16, Width: 8, Src: ir.Imm(7)},
		ir.Store{Base: ir.FP, Off: -24, Width: 4, Src: ir.Imm(0)},
		ir.Load{Dst: ir.R2, Base: ir.R1, Off: 0, Width: 8},
		ir.Store{Base: ir.R1, Off: 8, Width: 4, Src: ir.R2})
	tr := memory.NewTransfer(fn, nil, false)
	in := analyze(t, fn, tr)

	dec, err := Run(fn, tr, in, 8)
	if err != nil {
		t.Fatal(err)
	}

	g := goldie.New(t)
	g.Assert(t, "decisions", []byte(dec.String()))
}
