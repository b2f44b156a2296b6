package guard

import (
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/metrics"
)

// maxGeneralQuantityDelta caps quantity changes on the general update path.
// Larger swings must go through the quantity-specific path so a reason is
// always captured.
const maxGeneralQuantityDelta = 1000

var genericReasons = map[string]struct{}{
	"test":         {},
	"modification": {},
	"changement":   {},
	"update":       {},
}

var forbiddenNameChars = []rune{'<', '>', '"', '\'', '&'}

// QuantityUpdateInput is the payload guarded on the quantity-specific path.
type QuantityUpdateInput struct {
	Quantity         *int   `json:"quantity" validate:"required,min=0,max=100000"`
	Reason           string `json:"reason" validate:"required,reason_length,not_generic"`
	PreviousQuantity *int   `json:"previous_quantity" validate:"omitempty,min=0"`
}

// GeneralUpdateInput is the payload guarded on the partial-update path.
type GeneralUpdateInput struct {
	Name             *string  `json:"name" validate:"omitempty,min=2,max=100,safe_text"`
	Quantity         *int     `json:"quantity" validate:"omitempty,min=0,max=100000"`
	PreviousQuantity *int     `json:"previous_quantity" validate:"omitempty,min=0"`
	MinStock         *int     `json:"min_stock" validate:"omitempty,min=0,max=10000"`
	Price            *float64 `json:"price" validate:"omitempty,min=0,max=1000000"`
	Supplier         *string  `json:"supplier" validate:"omitempty,max=100,safe_text"`
}

// CreationInput is the payload guarded when a medication is created.
type CreationInput struct {
	Name       string   `json:"name" validate:"required,min=2,max=100,safe_text"`
	Quantity   *int     `json:"quantity" validate:"required,min=0,max=100000"`
	MinStock   *int     `json:"min_stock" validate:"required,min=0,max=10000"`
	CategoryID int64    `json:"category_id" validate:"required,gt=0"`
	UnitName   string   `json:"unit_name" validate:"required,min=1,max=50,unit_name"`
	Price      *float64 `json:"price" validate:"omitempty,min=0,max=1000000"`
	Supplier   *string  `json:"supplier" validate:"omitempty,max=100,safe_text"`
}

// Guard evaluates the declarative rule sets and classifies stock anomalies.
type Guard struct {
	validate *validator.Validate
	metrics  *metrics.GuardMetrics
}

// NewGuard builds a guard with its custom validators registered. Metrics may
// be nil in tests.
func NewGuard(m *metrics.GuardMetrics) *Guard {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})

	_ = v.RegisterValidation("safe_text", func(fl validator.FieldLevel) bool {
		return !containsForbiddenChar(fl.Field().String())
	})
	_ = v.RegisterValidation("reason_length", func(fl validator.FieldLevel) bool {
		length := utf8.RuneCountInString(strings.TrimSpace(fl.Field().String()))
		return length >= 5 && length <= 255
	})
	_ = v.RegisterValidation("not_generic", func(fl validator.FieldLevel) bool {
		trimmed := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		_, generic := genericReasons[trimmed]
		return !generic
	})
	_ = v.RegisterValidation("unit_name", func(fl validator.FieldLevel) bool {
		return enums.UnitName(fl.Field().String()).IsValid()
	})

	v.RegisterStructValidation(generalUpdateStructRules, GeneralUpdateInput{})
	v.RegisterStructValidation(creationStructRules, CreationInput{})

	return &Guard{validate: v, metrics: m}
}

func generalUpdateStructRules(sl validator.StructLevel) {
	in := sl.Current().Interface().(GeneralUpdateInput)
	if in.Quantity != nil && in.PreviousQuantity != nil {
		delta := *in.Quantity - *in.PreviousQuantity
		if delta < 0 {
			delta = -delta
		}
		if delta > maxGeneralQuantityDelta {
			sl.ReportError(in.Quantity, "quantity", "Quantity", "max_delta", "")
		}
	}
	if in.MinStock != nil && in.Quantity != nil && *in.MinStock > *in.Quantity {
		sl.ReportError(in.MinStock, "min_stock", "MinStock", "ltefield_quantity", "")
	}
}

func creationStructRules(sl validator.StructLevel) {
	in := sl.Current().Interface().(CreationInput)
	if in.MinStock != nil && in.Quantity != nil && *in.MinStock > *in.Quantity {
		sl.ReportError(in.MinStock, "min_stock", "MinStock", "ltefield_quantity", "")
	}
}

// ValidateQuantityUpdate applies the quantity-update rule set.
func (g *Guard) ValidateQuantityUpdate(in QuantityUpdateInput) error {
	return g.run("quantity_update", in)
}

// ValidateGeneralUpdate applies the general-update rule set.
func (g *Guard) ValidateGeneralUpdate(in GeneralUpdateInput) error {
	return g.run("general_update", in)
}

// ValidateCreation applies the creation rule set.
func (g *Guard) ValidateCreation(in CreationInput) error {
	return g.run("creation", in)
}

func (g *Guard) run(ruleSet string, in any) error {
	err := g.validate.Struct(in)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := map[string]string{}
	for _, fieldErr := range errs {
		field := fieldErr.Field()
		details[field] = ruleMessage(fieldErr)
		g.metrics.IncRejection(ruleSet, field)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "safe_text":
		return "contains forbidden characters"
	case "reason_length":
		return "must be between 5 and 255 characters"
	case "not_generic":
		return "is too generic, provide a specific reason"
	case "unit_name":
		return "is not a recognized unit"
	case "max_delta":
		return fmt.Sprintf("change exceeds %d, use the quantity update path", maxGeneralQuantityDelta)
	case "ltefield_quantity":
		return "cannot exceed quantity"
	}
	return "is invalid"
}

func containsForbiddenChar(value string) bool {
	for _, r := range forbiddenNameChars {
		if strings.ContainsRune(value, r) {
			return true
		}
	}
	return false
}
