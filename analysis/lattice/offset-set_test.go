package lattice

import "testing"

func TestOffsetSetOps(t *testing.T) {
	lat := Create().Lattice().OffsetSet()
	mk := Create().Element().OffsetSet

	s1 := mk(0, 8, 16)
	s2 := mk(8, 24)
	top := lat.Top().OffsetSet()
	bot := lat.Bot().OffsetSet()

	if !s1.Contains(8) || s1.Contains(4) {
		t.Errorf("membership of %s is wrong", s1)
	}
	// Stack offsets are negative; the sparse representation must
	// handle them.
	neg := mk(-8, -16)
	if !neg.Contains(-16) || neg.Contains(16) {
		t.Errorf("membership of %s is wrong", neg)
	}

	join := s1.MonoJoin(s2)
	if join.Size() != 4 || !join.Contains(24) {
		t.Errorf("%s ⊔ %s = %s", s1, s2, join)
	}

	meet := s1.Meet(s2).OffsetSet()
	if meet.Size() != 1 || !meet.Contains(8) {
		t.Errorf("%s ⊓ %s = %s", s1, s2, meet)
	}

	if !s1.Leq(top) || top.Leq(s1) {
		t.Error("⊤ must strictly dominate finite sets")
	}
	if !bot.Leq(s1) || s1.Leq(bot) {
		t.Error("⊥ must be strictly below finite sets")
	}
	if !s1.MonoJoin(top).IsTop() {
		t.Error("joins with ⊤ must be ⊤")
	}

	if got := mk(4).Offset(); got != 4 {
		t.Errorf("singleton offset = %d, expected 4", got)
	}

	shifted := s1.Shift(-8)
	if !shifted.Contains(-8) || !shifted.Contains(0) || !shifted.Contains(8) || shifted.Size() != 3 {
		t.Errorf("%s shifted by -8 = %s", s1, shifted)
	}
}

func TestOffsetSetImmutable(t *testing.T) {
	mk := Create().Element().OffsetSet
	s := mk(1, 2)
	_ = s.Add(3)
	if s.Size() != 2 || s.Contains(3) {
		t.Errorf("Add mutated the receiver: %s", s)
	}
}
