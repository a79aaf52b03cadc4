package validation

import (
	"github.com/cypherlabdev/bookshop-service/internal/models"
)

// Book formats a shop can stock
const (
	FormatHardback  = "hardback"
	FormatPaperback = "paperback"
	FormatDigital   = "digital"
)

var bookSchema = schema{
	accepted:       []string{"title", "author", "publisher", "date", "isbn", "format", "language", "synopsis"},
	updateAccepted: []string{"title", "author", "publisher", "date", "isbn", "format", "synopsis"},
	required: []requiredField{
		{name: "language", missing: "Language is a required field", rule: languageRule},
		{name: "title", missing: "Title is a required field", rule: stringRule},
		{name: "author", missing: "Author is a required field", rule: stringRule},
		{name: "publisher", missing: "publisher is a required field", rule: stringRule},
		{name: "date", missing: "Date is a required field", rule: tagRule("datetime=2006-01-02", "Date provided is not valid")},
		{name: "isbn", missing: "ISBN is a required field", rule: isbnRule},
		{name: "format", missing: "format is a required field", rule: tagRule("oneof="+FormatHardback+" "+FormatPaperback+" "+FormatDigital, "Invalid value provided for format")},
	},
	immutable: []immutableField{
		{name: "author", message: "The author of a book cannot be changed"},
		{name: "isbn", message: "The ISBN of a book cannot be changed"},
	},
}

var languageRule = tagRule("len=2,alpha,lowercase", "The language provided is not valid")

// ValidLanguage reports whether code is a well-formed shard key
func ValidLanguage(code string) bool {
	return validate.Var(code, "len=2,alpha,lowercase") == nil
}

func isbnRule(name string, value any) error {
	isbn, err := asString(name, value)
	if err != nil {
		return err
	}
	if validate.Var(isbn, "number") != nil {
		return models.InvalidInput("ISBN must contain only numbers", models.Field(name))
	}
	if len(isbn) != 10 && len(isbn) != 13 {
		return models.InvalidInput("Invalid ISBN provided", models.Field(name))
	}
	return nil
}
