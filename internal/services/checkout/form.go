package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	digitsRe = regexp.MustCompile(`^[0-9]+$`)
	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("minor_units", func(fl validator.FieldLevel) bool {
		_, err := strconv.ParseInt(fl.Field().String(), 10, 64)
		return err == nil
	})
	return v
}

// Form holds the user-editable checkout fields. Amount is kept as entered,
// in minor currency units.
type Form struct {
	Name    string `form:"name" validate:"required"`
	Email   string `form:"email" validate:"required"`
	Address string `form:"address" validate:"required"`
	Zipcode string `form:"zipcode" validate:"required"`
	City    string `form:"city" validate:"required"`
	Amount  string `form:"amount" validate:"required,digits,minor_units"`
}

// DefaultForm returns a form pre-filled with demo billing details.
func DefaultForm(amount int64) Form {
	return Form{
		Name:    "Ricardo",
		Email:   "support@ngx-stripe.dev",
		Address: "Av. Ramon Nieto 313B 2D",
		Zipcode: "36205",
		City:    "Vigo",
		Amount:  strconv.FormatInt(amount, 10),
	}
}

// Validate checks every field rule and reports all failures at once.
func (f Form) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	out := FieldErrors{}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		out["_"] = "Form data is invalid."
		return &ValidationError{Fields: out}
	}
	for _, fe := range ve {
		out[fe.Field()] = messageForTag(fe.Tag())
	}
	return &ValidationError{Fields: out}
}

func (f Form) Valid() bool {
	return f.Validate() == nil
}

// AmountMinor returns the amount in minor units, or 0 when it does not parse.
func (f Form) AmountMinor() int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(f.Amount), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// DisplayAmount converts the amount to major units for display only.
func (f Form) DisplayAmount() float64 {
	n := f.AmountMinor()
	if n <= 0 {
		return 0
	}
	return float64(n) / 100
}

// Clear blanks the identity fields. Amount is left as is.
func (f *Form) Clear() {
	f.Name = ""
	f.Email = ""
	f.Address = ""
	f.Zipcode = ""
	f.City = ""
}

func (f Form) Billing() BillingDetails {
	return BillingDetails{
		Name:  f.Name,
		Email: f.Email,
		Address: Address{
			Line1:      f.Address,
			PostalCode: f.Zipcode,
			City:       f.City,
		},
	}
}

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "digits":
		return "Only digits are allowed."
	case "minor_units":
		return "Amount is too large."
	default:
		return "Invalid value."
	}
}
