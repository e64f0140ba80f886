package validators

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// enumRules are custom tags backed by the enum parsers.
var enumRules = map[string]struct {
	parse   func(string) error
	message string
}{
	"grade": {
		parse:   func(s string) error { _, err := enums.ParseGrade(s); return err },
		message: "must be a known grade",
	},
	"origin": {
		parse:   func(s string) error { _, err := enums.ParseOrigin(s); return err },
		message: "must be a known origin",
	},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	for tag, rule := range enumRules {
		parse := rule.parse
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return parse(fl.Field().String()) == nil
		}); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", tag, err))
		}
	}
	return v
}

// jsonFieldName reports fields by their wire name.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "":
		return f.Name
	case "-":
		return ""
	}
	return name
}

func fieldMessage(fe validator.FieldError) string {
	if rule, ok := enumRules[fe.Tag()]; ok {
		return rule.message
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must be a date formatted as " + fe.Param()
	}
	return "is invalid"
}
