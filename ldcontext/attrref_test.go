package ldcontext

import "testing"

func TestLiteralRoundTrip(t *testing.T) {
	cases := []string{"email", "a/b", "a~b", "plain"}
	for _, s := range cases {
		lit := NewLiteralRef(s)
		name := lit.RedactionName()
		reparsed := NewRef(name)
		if !reparsed.Equal(lit) {
			t.Fatalf("round trip failed for %q: redaction name %q reparsed to %#v, want equal to %#v", s, name, reparsed, lit)
		}
	}
}

func TestReferenceEscaping(t *testing.T) {
	ref := NewRef("/a~1b/c~0d")
	if ref.Depth() != 2 {
		t.Fatalf("expected 2 components, got %d", ref.Depth())
	}
	if ref.Component(0) != "a/b" || ref.Component(1) != "c~d" {
		t.Fatalf("unexpected unescaped components: %q %q", ref.Component(0), ref.Component(1))
	}
}

func TestInvalidReferencePreserved(t *testing.T) {
	ref := NewRef("/a//b")
	if ref.IsValid() {
		t.Fatalf("expected empty path component to be invalid")
	}
	if ref.String() != "/a//b" {
		t.Fatalf("invalid reference should preserve original string for error messages")
	}
}

func TestBuiltinsCannotBePrivate(t *testing.T) {
	for _, name := range []string{"kind", "key", "_meta"} {
		ref := NewLiteralRef(name)
		if ref.CanBePrivate() {
			t.Fatalf("%q should not be markable private", name)
		}
	}
}

func TestOrderingIsLexicographic(t *testing.T) {
	a := NewRef("/a/b")
	b := NewRef("/a/c")
	if !a.Less(b) {
		t.Fatalf("expected /a/b < /a/c")
	}
}
