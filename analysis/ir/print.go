package ir

import (
	"fmt"
	"strings"
)

func (b *Block) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "b%d:\n", b.ID)
	for _, ins := range b.Instrs {
		sb.WriteString("  " + ins.String() + "\n")
	}
	sb.WriteString("  " + b.Term.String() + "\n")
	return sb.String()
}

func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s [frame=%d]\n", f.Name, f.FrameSize)
	for _, id := range f.BlockIDs() {
		sb.WriteString(f.Blocks[id].String())
	}
	return sb.String()
}

func (p *Program) String() string {
	var sb strings.Builder
	for i, name := range p.FuncNames() {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(p.Funcs[name].String())
	}
	return sb.String()
}
