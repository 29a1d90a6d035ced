package domain

import (
	"encoding/json"
	"fmt"
)

// QuantitySpec accepts either a single number (applied to every product in
// scope) or a per-product map. It is normalized once at the boundary via
// Resolve; nothing downstream sees the variant shape.
type QuantitySpec struct {
	Uniform *int
	PerItem map[string]int
}

func (q *QuantitySpec) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		q.Uniform = &n
		q.PerItem = nil
		return nil
	}
	var m map[string]int
	if err := json.Unmarshal(b, &m); err == nil {
		q.Uniform = nil
		q.PerItem = m
		return nil
	}
	return fmt.Errorf("quantity must be a number or a productId->qty map")
}

func (q QuantitySpec) MarshalJSON() ([]byte, error) {
	if q.Uniform != nil {
		return json.Marshal(*q.Uniform)
	}
	return json.Marshal(q.PerItem)
}

// Resolve produces a uniform quantity map over productIDs. Negative
// quantities clamp to 0; unknown map keys are kept so callers can validate
// against the catalog.
func (q QuantitySpec) Resolve(productIDs []string) map[string]int {
	out := map[string]int{}
	if q.Uniform != nil {
		n := *q.Uniform
		if n < 0 {
			n = 0
		}
		for _, id := range productIDs {
			out[id] = n
		}
		return out
	}
	for id, n := range q.PerItem {
		if n < 0 {
			n = 0
		}
		out[id] = n
	}
	return out
}
