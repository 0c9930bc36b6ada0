package checkout

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	personNameRe = regexp.MustCompile(`^[a-zA-Z\s.]+$`)
	mobileRe     = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincodeRe    = regexp.MustCompile(`^\d{6}$`)
	emailRe      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneNoise   = strings.NewReplacer(" ", "", "\t", "", "(", "", ")", "", "-", "")
)

// customerForm is the normalised input the validator sees. Field order is the
// order errors are reported in.
type customerForm struct {
	Name    string `json:"name" validate:"required,min=2,max=50,personname"`
	Phone   string `json:"phone" validate:"required,inmobile"`
	Email   string `json:"email" validate:"omitempty,emailaddr"`
	Address string `json:"address" validate:"required,min=10,max=200"`
	Pincode string `json:"pincode" validate:"required,pincode"`
}

var fieldOrder = []string{"name", "phone", "email", "address", "pincode"}

var messages = map[string]map[string]string{
	"name": {
		"required":   "Name is required",
		"min":        "Name must be at least 2 characters",
		"max":        "Name must be less than 50 characters",
		"personname": "Name can only contain letters, spaces, and dots",
	},
	"phone": {
		"required": "Phone number is required",
		"inmobile": "Enter a valid 10-digit Indian mobile number",
	},
	"email": {
		"emailaddr": "Invalid email address",
	},
	"address": {
		"required": "Address is required",
		"min":      "Address must be at least 10 characters",
		"max":      "Address must be less than 200 characters",
	},
	"pincode": {
		"required": "Pincode is required",
		"pincode":  "Pincode must be exactly 6 digits",
	},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNameRe.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("inmobile", func(fl validator.FieldLevel) bool {
		return mobileRe.MatchString(NormalizePhone(fl.Field().String()))
	}))
	must(v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		return pincodeRe.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("emailaddr", func(fl validator.FieldLevel) bool {
		return emailRe.MatchString(fl.Field().String())
	}))
	return v
}

// NormalizePhone strips spaces, parentheses and dashes.
func NormalizePhone(phone string) string {
	return phoneNoise.Replace(strings.TrimSpace(phone))
}

// ValidationError lists the invalid customer fields with their messages.
type ValidationError struct {
	Fields map[string]string
	// First is the first invalid field in form order.
	First string
}

func (e *ValidationError) Error() string {
	return e.Fields[e.First]
}

// Validate checks a customer's contact and delivery details. It returns nil
// or a *ValidationError.
func Validate(c Customer) error {
	form := customerForm{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.TrimSpace(c.Phone),
		Email:   strings.TrimSpace(c.Email),
		Address: strings.TrimSpace(c.Address),
		Pincode: strings.TrimSpace(c.Pincode),
	}

	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()][fe.Tag()]
		if !ok {
			msg = "Invalid value"
		}
		fields[fe.Field()] = msg
	}
	out := &ValidationError{Fields: fields}
	for _, f := range fieldOrder {
		if _, ok := fields[f]; ok {
			out.First = f
			break
		}
	}
	return out
}
