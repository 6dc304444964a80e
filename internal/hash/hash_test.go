package hash

import "testing"

func TestItemStable(t *testing.T) {
	a := Item("math", "add")
	b := Item("math", "add")
	if a != b {
		t.Fatalf("same path hashed differently: %s vs %s", a, b)
	}
	if a == Empty {
		t.Fatal("item hash collides with Empty")
	}
}

func TestItemSeparatorMatters(t *testing.T) {
	if Item("ab", "c") == Item("a", "bc") {
		t.Fatal("path segmentation not part of the hash")
	}
}

func TestNameMatchesItem(t *testing.T) {
	if Name("math::add") != Item("math", "add") {
		t.Fatal("Name and Item disagree")
	}
	if Name("main") != Item("main") {
		t.Fatal("single-segment Name and Item disagree")
	}
}
