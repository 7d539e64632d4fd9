package ir

import (
	"strings"
	"testing"
)

const sampleProgram = `
roots: [main]
functions:
  - name: main
    frame: 32
    blocks:
      - id: 0
        instrs:
          - {op: store, base: fp, off: -16, width: 8, src: 7}
          - {op: bin, aop: add, dst: r1, x: fp, y: -16}
          - {op: call, callee: helper}
        term: {op: if, cond: {x: r0, cmp: ==, y: 0}, then: 1, else: 2}
      - id: 1
        instrs:
          - {op: memset, dst: r1, val: 0, len: 8}
        term: {op: jump, to: 2}
      - id: 2
        term: {op: exit}
  - name: helper
    frame: 16
    blocks:
      - id: 0
        instrs:
          - {op: load, dst: r0, base: r1, off: 0, width: 8}
        term: {op: exit}
`

func TestDecodeProgram(t *testing.T) {
	p, err := Decode(strings.NewReader(sampleProgram))
	if err != nil {
		t.Fatal(err)
	}

	if len(p.Roots) != 1 || p.Roots[0] != "main" {
		t.Errorf("roots = %v, expected [main]", p.Roots)
	}
	main := p.Func("main")
	if main == nil {
		t.Fatal("main not decoded")
	}
	if main.FrameSize != 32 || len(main.Blocks) != 3 || main.Entry != 0 {
		t.Errorf("main decoded as frame=%d blocks=%d entry=%d",
			main.FrameSize, len(main.Blocks), main.Entry)
	}

	entry := main.Block(0)
	if st, ok := entry.Instrs[0].(Store); !ok || st.Base != FP || st.Off != -16 || st.Src != Imm(7) {
		t.Errorf("instr 0 decoded as %v", entry.Instrs[0])
	}
	if bin, ok := entry.Instrs[1].(Bin); !ok || bin.Op != ADD || bin.Dst != R1 || bin.X != FP || bin.Y != Imm(-16) {
		t.Errorf("instr 1 decoded as %v", entry.Instrs[1])
	}
	br, ok := entry.Term.(If)
	if !ok || br.Then != 1 || br.Else != 2 {
		t.Fatalf("terminator decoded as %v", entry.Term)
	}
	if br.Cond.X != R0 || br.Cond.Op != EQ || br.Cond.Y != Imm(0) {
		t.Errorf("condition decoded as %v", br.Cond)
	}

	helper := p.Func("helper")
	if helper == nil || len(helper.Blocks) != 1 {
		t.Fatalf("helper not decoded: %v", helper)
	}
	if ld, ok := helper.Block(0).Instrs[0].(Load); !ok || ld.Dst != R0 || ld.Base != R1 || ld.Width != 8 {
		t.Errorf("helper instr decoded as %v", helper.Block(0).Instrs[0])
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for name, src := range map[string]string{
		"unknown field": `
functions:
  - name: f
    stack: 8
    blocks: [{id: 0}]
`,
		"unknown register": `
functions:
  - name: f
    blocks:
      - id: 0
        instrs: [{op: load, dst: r42, base: r1, width: 8}]
`,
		"dangling edge": `
functions:
  - name: f
    blocks:
      - id: 0
        term: {op: jump, to: 3}
`,
		"bad width": `
functions:
  - name: f
    blocks:
      - id: 0
        instrs: [{op: store, base: fp, off: -8, width: 3, src: 0}]
        term: {op: exit}
`,
		"duplicate block": `
functions:
  - name: f
    blocks: [{id: 0}, {id: 0}]
`,
	} {
		if _, err := Decode(strings.NewReader(src)); err == nil {
			t.Errorf("%s: malformed program was accepted", name)
		}
	}
}
