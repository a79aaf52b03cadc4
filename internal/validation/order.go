package validation

import (
	"encoding/json"
	"math"

	"github.com/cypherlabdev/bookshop-service/internal/models"
)

var orderSchema = schema{
	accepted: []string{"customer_id", "book_ids", "quantity", "ship_date", "status", "complete"},
	required: []requiredField{
		{name: "customer_id", missing: "customer_id is a required field", rule: stringRule},
		{name: "book_ids", missing: "book_ids is a required field", rule: bookIDsRule},
		{name: "quantity", missing: "quantity is a required field", rule: quantityRule},
	},
	immutable: []immutableField{
		{name: "customer_id", message: "The customer this order is associated with can not be changed"},
		{name: "order_id", message: "The order ID can not be changed"},
	},
}

func bookIDsRule(name string, value any) error {
	if _, ok := BookIDs(value); !ok {
		return models.InvalidInput("book_ids is not a valid array", models.Field(name))
	}
	return nil
}

func quantityRule(name string, value any) error {
	if _, ok := Quantity(value); !ok {
		return models.InvalidInput("quantity must be an integer > 0", models.Field(name))
	}
	return nil
}

// BookIDs extracts a list of book identifiers from a decoded JSON value
func BookIDs(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			ids = append(ids, s)
		}
		return ids, true
	default:
		return nil, false
	}
}

// Quantity extracts a positive integer quantity from a decoded JSON value
func Quantity(value any) (int64, bool) {
	var n float64
	switch v := value.(type) {
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case float64:
		n = v
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		n = float64(i)
	default:
		return 0, false
	}
	if n <= 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return 0, false
	}
	return int64(n), true
}
