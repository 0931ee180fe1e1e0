package coredoc

import "testing"

func textDelta(ops ...Item) *Delta {
	d := NewDelta()
	for _, it := range ops {
		switch it.Kind {
		case KindRetain:
			d.Retain(it.Len, it.Attrs)
		case KindInsert:
			d.InsertItem(it.Value, it.Attrs)
		case KindDelete:
			d.Delete(it.Len)
		}
	}
	return d
}

func ins(s string) Item { return Item{Kind: KindInsert, Value: TextRun(s)} }
func ret(n int) Item    { return Item{Kind: KindRetain, Len: n} }
func del(n int) Item    { return Item{Kind: KindDelete, Len: n} }

func deltaText(d *Delta) string {
	out := ""
	for _, it := range d.Items() {
		if it.Kind == KindInsert {
			out += it.Value.(TextRun).String()
		}
	}
	return out
}

func TestDeltaPushMergesAdjacentInserts(t *testing.T) {
	d := textDelta(ins("ab"), ins("cd"))
	if len(d.Items()) != 1 {
		t.Fatalf("expected merge into one item, got %d: %+v", len(d.Items()), d.Items())
	}
	if deltaText(d) != "abcd" {
		t.Fatalf("expected abcd, got %q", deltaText(d))
	}
}

func TestDeltaPushCanonicalisesDeleteThenInsert(t *testing.T) {
	d := NewDelta()
	d.Delete(2)
	d.InsertItem(TextRun("x"), nil)
	items := d.Items()
	if len(items) != 2 || items[0].Kind != KindInsert || items[1].Kind != KindDelete {
		t.Fatalf("expected insert before delete, got %+v", items)
	}
}

func TestDeltaComposeWithEmptyRetainIsIdentity(t *testing.T) {
	a := textDelta(ins("hello"))
	empty := NewDelta().Retain(5, nil)
	got := a.Compose(empty)
	if deltaText(got) != "hello" {
		t.Fatalf("compose with identity retain changed content: %q", deltaText(got))
	}
}

func TestDeltaComposeAssociative(t *testing.T) {
	a := textDelta(ins("ab"))
	b := NewDelta().Retain(1, nil).Delete(1)
	c := NewDelta().Retain(1, nil).InsertItem(TextRun("X"), nil)

	left := a.Compose(b).Compose(c)
	right := a.Compose(b.Compose(c))

	if deltaText(left) != deltaText(right) {
		t.Fatalf("compose not associative: left=%q right=%q", deltaText(left), deltaText(right))
	}
}

func TestDeltaComposeInsertThenDeleteAnnihilates(t *testing.T) {
	a := textDelta(ins("abc"))
	b := NewDelta().Delete(3)
	got := a.Compose(b)
	if len(got.Items()) != 0 {
		t.Fatalf("expected annihilation, got %+v", got.Items())
	}
}

func TestDeltaChopTrimsTrailingEmptyRetain(t *testing.T) {
	d := textDelta(ins("hi"), ret(3))
	d.Chop()
	if len(d.Items()) != 1 {
		t.Fatalf("expected trailing retain to be chopped, got %+v", d.Items())
	}
}

func TestStyleAttrsComposeInhibitedByDelete(t *testing.T) {
	bold := StyleAttrs{"bold": true}
	if bold.Compose(StyleAttrs{"italic": true}, KindRetain, KindDelete) != nil {
		t.Fatalf("expected delete to inhibit style propagation")
	}
}
