package domain

import (
	"encoding/json"
	"testing"
)

func TestQuantitySpecAcceptsNumberOrMap(t *testing.T) {
	var q QuantitySpec
	if err := json.Unmarshal([]byte(`7`), &q); err != nil {
		t.Fatal(err)
	}
	if q.Uniform == nil || *q.Uniform != 7 {
		t.Fatalf("number form lost: %+v", q)
	}

	if err := json.Unmarshal([]byte(`{"tee-black":2,"hood-ash":0}`), &q); err != nil {
		t.Fatal(err)
	}
	if q.Uniform != nil || q.PerItem["tee-black"] != 2 {
		t.Fatalf("map form lost: %+v", q)
	}

	if err := json.Unmarshal([]byte(`"five"`), &q); err == nil {
		t.Fatal("string form must be rejected")
	}
}

func TestQuantitySpecResolve(t *testing.T) {
	n := 3
	got := QuantitySpec{Uniform: &n}.Resolve([]string{"a", "b"})
	if got["a"] != 3 || got["b"] != 3 || len(got) != 2 {
		t.Fatalf("uniform resolve: %+v", got)
	}

	neg := -2
	got = QuantitySpec{Uniform: &neg}.Resolve([]string{"a"})
	if got["a"] != 0 {
		t.Fatalf("negative uniform must clamp to 0: %+v", got)
	}

	got = QuantitySpec{PerItem: map[string]int{"a": 4, "ghost": -1}}.Resolve([]string{"a", "b"})
	if got["a"] != 4 || got["ghost"] != 0 {
		t.Fatalf("per-item resolve: %+v", got)
	}
	if _, ok := got["b"]; ok {
		t.Fatalf("unlisted products must stay absent: %+v", got)
	}
}
