package container

import "testing"

func TestMissingKeyReturnsNil(t *testing.T) {
	c := New()
	if got := c.Get("absent"); got != nil {
		t.Fatalf("expected nil for missing key, got %v", got)
	}
	if len(c) != 0 {
		t.Fatalf("expected read of missing key to leave container empty, got %d entries", len(c))
	}
}

func TestLookup(t *testing.T) {
	c := Container{"name": "alice"}
	if v, ok := c.Lookup("name"); !ok || v != "alice" {
		t.Fatalf("Lookup(name) = %v, %v", v, ok)
	}
	if _, ok := c.Lookup("other"); ok {
		t.Fatal("expected missing key to report absent")
	}
}

func TestSetAndMapAccessAgree(t *testing.T) {
	c := New()
	c.Set("greeting", "hello")
	c["count"] = 3

	if c["greeting"] != "hello" {
		t.Fatalf("map read after Set = %v", c["greeting"])
	}
	if c.Get("count") != 3 {
		t.Fatalf("Get after map write = %v", c.Get("count"))
	}
	if !c.Has("count") {
		t.Fatal("expected Has to see map write")
	}
}

func TestSetOverwrites(t *testing.T) {
	c := Container{"k": 1}
	c.Set("k", 2)
	if c["k"] != 2 {
		t.Fatalf("expected overwrite, got %v", c["k"])
	}
}

func TestClear(t *testing.T) {
	c := Container{"a": 1, "b": 2}
	c.Clear()
	if len(c) != 0 {
		t.Fatalf("expected empty container, got %d entries", len(c))
	}
	c.Set("a", 3)
	if c.Get("a") != 3 {
		t.Fatal("expected container to stay usable after Clear")
	}
}

func TestUpdate(t *testing.T) {
	c := Container{"keep": true}
	c.Update(map[string]any{"added": "yes", "keep": false})
	if c["added"] != "yes" {
		t.Fatal("expected Update to add entry")
	}
	if c["keep"] != false {
		t.Fatal("expected Update to overwrite entry")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	original := Container{"a": "1", "b": "2"}
	clone := original.Clone()
	clone["a"] = "changed"

	if original["a"] != "1" {
		t.Fatalf("expected original container to stay untouched, got %q", original["a"])
	}
	if len(clone) != len(original) {
		t.Fatalf("expected clone to have same size")
	}
}

func TestDelete(t *testing.T) {
	c := Container{"a": 1}
	c.Delete("a")
	if c.Has("a") {
		t.Fatal("expected key to be removed")
	}
	c.Delete("a")
}
