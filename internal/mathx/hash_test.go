package mathx

import "testing"

func TestUnitRange(t *testing.T) {
	var sum float64
	const n = 100_000
	for i := uint32(0); i < n; i++ {
		u := Unit(Hash3(7, i, 3, 1))
		if u < 0 || u >= 1 {
			t.Fatalf("Unit out of range: %v", u)
		}
		sum += float64(u)
	}
	if mean := sum / n; mean < 0.48 || mean > 0.52 {
		t.Fatalf("mean %v, expected near 0.5", mean)
	}
}

func TestHash3Stable(t *testing.T) {
	if Hash3(1, 2, 3, 4) != Hash3(1, 2, 3, 4) {
		t.Fatal("hash not deterministic")
	}
	if Hash3(1, 2, 3, 4) == Hash3(1, 2, 3, 5) {
		t.Fatal("adjacent keys collide")
	}
	if Unit(0xffffffff) >= 1 {
		t.Fatal("max hash maps to 1")
	}
}
