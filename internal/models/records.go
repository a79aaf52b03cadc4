package models

import (
	"encoding/json"
	"maps"
	"slices"
)

// Fields is a flat JSON object as received from a client or held in the store
type Fields map[string]any

// Store tables
const (
	TableBooks     = "books"
	TableCustomers = "customers"
	TableOrders    = "orders"
	TableUsernames = "usernames"
)

// Identifier field names
const (
	BookID     = "book_id"
	CustomerID = "customer_id"
	OrderID    = "order_id"
)

// String returns the value at key when it is a string
func (f Fields) String(key string) (string, bool) {
	v, ok := f[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Has reports whether key is present, even with a null value
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Pick returns a copy holding only the allowed keys
func (f Fields) Pick(allowed []string) Fields {
	out := make(Fields, len(allowed))
	for k, v := range f {
		if slices.Contains(allowed, k) {
			out[k] = v
		}
	}
	return out
}

// Merge returns f overlaid with update. Neither input is modified.
func (f Fields) Merge(update Fields) Fields {
	out := maps.Clone(f)
	if out == nil {
		out = make(Fields, len(update))
	}
	maps.Copy(out, update)
	return out
}

// Clone deep-copies the record through its JSON form so nested arrays are
// not shared between callers.
func (f Fields) Clone() (Fields, error) {
	if f == nil {
		return nil, nil
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var out Fields
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
