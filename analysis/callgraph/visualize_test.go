package callgraph

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteDotCoversCallsAndExternals(t *testing.T) {
	prog := progOf(t, map[string][]string{
		"root": {"a", "ext"},
		"a":    {"b"},
		"b":    {"a"},
	}, "root")
	g := Build(prog)

	var buf bytes.Buffer
	if err := g.WriteDot(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`"root" -> "a"`,
		`"root" -> "ext"`,
		`"a" -> "b"`,
		`subgraph "cluster_scc0"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dot output missing %q:\n%s", want, out)
		}
	}
}
