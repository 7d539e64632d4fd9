package config

import (
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(strings.NewReader("preserve: [foo]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.WordSize != 8 {
		t.Errorf("word size = %d, expected the default 8", c.WordSize)
	}
	if c.OptimisticOverlap {
		t.Error("optimistic overlap must never default to on")
	}
	if len(c.PreserveList) != 1 || c.PreserveList[0] != "foo" {
		t.Errorf("preserve = %v, expected [foo]", c.PreserveList)
	}
}

func TestLoadFullConfig(t *testing.T) {
	src := `
optimistic-overlap: true
word-size: 32
preserve: [entry_a, entry_b]
widening-threshold: 5
max-offsets: 128
jobs: 4
tag-masks: [255, 15]
log-level: 4
`
	c, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if c.WordSize != 32 || !c.OptimisticOverlap || c.Jobs != 4 {
		t.Errorf("unexpected config %+v", c)
	}
	masks := c.TagMaskSet()
	if !masks[255] || !masks[15] || len(masks) != 2 {
		t.Errorf("tag masks = %v", masks)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	for _, src := range []string{
		"word-size: 0\n",
		"log-level: 9\n",
		"jobs: -1\n",
		"no-such-option: true\n",
	} {
		if _, err := Load(strings.NewReader(src)); err == nil {
			t.Errorf("config %q was accepted", strings.TrimSpace(src))
		}
	}
}
