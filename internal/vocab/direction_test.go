package vocab

import "testing"

func TestChildReferencesParentCurated(t *testing.T) {
	if !ChildReferencesParent("Is a", "Subsumes") {
		t.Fatalf("expected Is a to be child→parent")
	}
	if ChildReferencesParent("Subsumes", "Is a") {
		t.Fatalf("expected Subsumes to be parent→child")
	}
	if !ChildReferencesParent("RxNorm is a", "RxNorm inverse is a") {
		t.Fatalf("expected RxNorm is a to be child→parent")
	}
}

func TestChildReferencesParentLexicographicFallback(t *testing.T) {
	// Unknown kinds fall back to comparing against the declared reverse.
	if !ChildReferencesParent("Component of", "Has component") {
		t.Fatalf("expected identifier sorting before its reverse to be child→parent")
	}
	if ChildReferencesParent("Has component", "Component of") {
		t.Fatalf("expected identifier sorting after its reverse to be parent→child")
	}
}
