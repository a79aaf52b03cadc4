// Package validation cleans and checks request bodies before any business
// rule runs. Everything here is pure: no store access, no outbound calls.
package validation

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/cypherlabdev/bookshop-service/internal/models"
)

// Kind selects the schema a body is validated against
type Kind int

const (
	KindBook Kind = iota
	KindCustomer
	KindOrder
)

func (k Kind) String() string {
	switch k {
	case KindBook:
		return "book"
	case KindCustomer:
		return "customer"
	case KindOrder:
		return "order"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// fieldRule checks a present value. It returns nil when the value is acceptable.
type fieldRule func(name string, value any) error

type requiredField struct {
	name    string
	missing string
	rule    fieldRule
}

type immutableField struct {
	name    string
	message string
}

type schema struct {
	accepted       []string
	updateAccepted []string
	required       []requiredField
	immutable      []immutableField
}

var schemas = map[Kind]schema{
	KindBook:     bookSchema,
	KindCustomer: customerSchema,
	KindOrder:    orderSchema,
}

var validate = validator.New()

// AcceptedFields returns the allow-list for kind on create or update
func AcceptedFields(kind Kind, update bool) []string {
	s := schemas[kind]
	if update && s.updateAccepted != nil {
		return s.updateAccepted
	}
	return s.accepted
}

// Validate strips raw down to the allow-list and runs the required checks in
// declared order. A nil stored means create; otherwise the checks run on
// stored merged with the cleaned body, immutable fields are compared against
// stored and the returned Fields is the merged record.
func Validate(raw models.Fields, kind Kind, stored models.Fields) (models.Fields, error) {
	s, ok := schemas[kind]
	if !ok {
		return nil, fmt.Errorf("no schema registered for %s", kind)
	}

	update := stored != nil
	cleaned := raw.Pick(AcceptedFields(kind, update))

	view := cleaned
	if update {
		for _, f := range s.immutable {
			supplied, present := raw[f.name]
			if !present || supplied == nil {
				continue
			}
			if !reflect.DeepEqual(supplied, stored[f.name]) {
				return nil, models.InvalidUpdate(f.message, f.name)
			}
		}
		view = stored.Merge(cleaned)
	}

	for _, f := range s.required {
		value, present := view[f.name]
		if !present || isBlank(value) {
			return nil, models.InvalidInput(f.missing, models.Field(f.name))
		}
		if f.rule == nil {
			continue
		}
		if err := f.rule(f.name, value); err != nil {
			return nil, err
		}
	}

	return view, nil
}

// isBlank mirrors the falsy checks of the public API: absent, null and the
// empty string all count as missing. Zero numbers do not, the field rule
// rejects them with a more specific message.
func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}

func asString(name string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", models.InvalidInput(fmt.Sprintf("The field '%s' must be a string", name), models.Field(name))
	}
	return s, nil
}

// stringRule accepts any non-empty string
func stringRule(name string, value any) error {
	_, err := asString(name, value)
	return err
}

// tagRule accepts a string satisfying the validator tag, reporting message otherwise
func tagRule(tag, message string) fieldRule {
	return func(name string, value any) error {
		s, err := asString(name, value)
		if err != nil {
			return err
		}
		if validate.Var(s, tag) != nil {
			return models.InvalidInput(message, models.Field(name))
		}
		return nil
	}
}
