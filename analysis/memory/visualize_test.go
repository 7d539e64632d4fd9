package memory

import (
	"bytes"
	"strings"
	"testing"

	"github.com/verikit/memsplit/analysis/ir"
	"github.com/verikit/memsplit/analysis/scalar"
)

func TestPointsToDotExport(t *testing.T) {
	fn := ir.NewFunction("f", 16)
	ins := ir.Load{Dst: ir.R2, Base: ir.R1, Off: 0, Width: 8}
	fn.Blocks[fn.Entry].Instrs = []ir.Instruction{ins}

	tr := NewTransfer(fn, nil, false)
	st, err := tr.Step(Initial(), scalar.Initial(), ir.InstrRef{Block: fn.Entry, Index: 0}, ins)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := tr.Arena.WriteDot(&buf, st); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`label="stack`,
		`"r1" -> "n1"`,
		`"fp" -> "n0"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dot output missing %q:\n%s", want, out)
		}
	}
}
