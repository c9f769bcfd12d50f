package domtree

import "testing"

func TestInlineStyleParsesDeclarations(t *testing.T) {
	n := NewElement("div", map[string]string{"style": "display: none; Color:RED;;bad"})
	style := n.InlineStyle()
	if style["display"] != "none" {
		t.Fatalf("expected display none, got %q", style["display"])
	}
	if style["color"] != "red" {
		t.Fatalf("expected color red, got %q", style["color"])
	}
	if _, ok := style["bad"]; ok {
		t.Fatalf("malformed declaration should be skipped")
	}
}

func TestComputedStyleLazyAndCached(t *testing.T) {
	calls := 0
	n := NewElement("div", nil)
	n.SetComputedStyleFunc(func() map[string]string {
		calls++
		return map[string]string{"display": "block"}
	})
	if calls != 0 {
		t.Fatalf("style func should not be called until ComputedStyle")
	}
	s1 := n.ComputedStyle()
	s2 := n.ComputedStyle()
	if calls != 1 {
		t.Fatalf("expected style func to be called exactly once, got %d", calls)
	}
	if s1["display"] != "block" || s2["display"] != "block" {
		t.Fatalf("unexpected computed style: %+v %+v", s1, s2)
	}
}

func TestComputedStyleWithoutFuncReturnsEmpty(t *testing.T) {
	n := NewElement("div", nil)
	if style := n.ComputedStyle(); len(style) != 0 {
		t.Fatalf("expected empty style map, got %+v", style)
	}
}

func TestAttrLookupIsCaseInsensitiveOnName(t *testing.T) {
	n := NewElement("input", map[string]string{"type": "checkbox"})
	v, ok := n.Attr("TYPE")
	if !ok || v != "checkbox" {
		t.Fatalf("expected case-insensitive attr lookup, got %q ok=%v", v, ok)
	}
}
