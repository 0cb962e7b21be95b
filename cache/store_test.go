package cache

import "testing"

func TestPluginCache_RoundTrip(t *testing.T) {
	s := NewStore(nil, DefaultExpiry)
	pc := s.Plugin("scan")

	if _, ok := pc.Get("a"); ok {
		t.Fatal("expected miss on empty cache")
	}
	pc.Set("a", 42)
	v, ok := pc.Get("a")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if v.(int) != 42 {
		t.Errorf("Get(a) = %v, want 42", v)
	}
	if !pc.Has("a") {
		t.Error("Has(a) = false after Set")
	}
	if !pc.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if pc.Has("a") {
		t.Error("Has(a) = true after Delete")
	}
	if pc.Delete("a") {
		t.Error("Delete(a) = true on missing key")
	}
}

func TestStore_SweepExpiry(t *testing.T) {
	s := NewStore(nil, 2)
	s.Plugin("p").Set("k", "v")
	plugins := s.Sweep()
	if plugins == nil {
		t.Fatal("fresh entry swept immediately")
	}

	// One build without touching the entry: aged but kept.
	s2 := NewStore(&Snapshot{Plugins: plugins}, 2)
	plugins = s2.Sweep()
	if plugins == nil {
		t.Fatal("entry dropped after a single idle build")
	}

	// Second idle build reaches the expiry; entry and its group go.
	s3 := NewStore(&Snapshot{Plugins: plugins}, 2)
	if got := s3.Sweep(); got != nil {
		t.Errorf("Sweep() = %v, want nil after expiry", got)
	}
}

func TestStore_ReadResetsAge(t *testing.T) {
	s := NewStore(nil, 2)
	s.Plugin("p").Set("k", "v")
	plugins := s.Sweep()
	for build := 0; build < 5; build++ {
		next := NewStore(&Snapshot{Plugins: plugins}, 2)
		if _, ok := next.Plugin("p").Get("k"); !ok {
			t.Fatalf("entry lost on build %d despite being read every build", build)
		}
		plugins = next.Sweep()
	}
}

func TestStore_GroupsIsolated(t *testing.T) {
	s := NewStore(nil, DefaultExpiry)
	s.Plugin("a").Set("k", 1)
	s.Plugin("b").Set("k", 2)

	if v, _ := s.Plugin("a").Get("k"); v.(int) != 1 {
		t.Errorf("plugin a sees %v, want 1", v)
	}
	if v, _ := s.Plugin("b").Get("k"); v.(int) != 2 {
		t.Errorf("plugin b sees %v, want 2", v)
	}
	s.Plugin("a").Delete("k")
	if !s.Plugin("b").Has("k") {
		t.Error("deleting from group a affected group b")
	}
}
