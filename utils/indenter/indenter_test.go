package indenter

import "testing"

func TestNestedBlock(t *testing.T) {
	got := Indenter().Start("arena {").NestStrings("n0: a", "n1: b").End("}")
	want := "arena {\n  n0: a\n  n1: b\n}"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSingleEntryStaysInline(t *testing.T) {
	got := Indenter().Start("arena {").NestStrings("n0").End("}")
	if got != "arena {n0}" {
		t.Errorf("got %q, want %q", got, "arena {n0}")
	}
}
