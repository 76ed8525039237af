package ecr

import "testing"

func TestLinkKey_OrderIndependent(t *testing.T) {
	if LinkKey("a", "b") != LinkKey("b", "a") {
		t.Fatalf("LinkKey must be order independent")
	}
	if got, want := LinkKey("b", "a"), "a_b"; got != want {
		t.Fatalf("LinkKey(b, a) = %q, want %q", got, want)
	}
}

func TestRouteKey_Directional(t *testing.T) {
	if RouteKey("a", "b") == RouteKey("b", "a") {
		t.Fatalf("RouteKey must be directional")
	}
	if got, want := RouteKey("a", "b"), "a_b"; got != want {
		t.Fatalf("RouteKey(a, b) = %q, want %q", got, want)
	}
}
