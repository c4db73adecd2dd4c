package services

import (
	"github.com/go-playground/validator/v10"

	"github.com/hp-funnel/api/internal/bridge"
	"github.com/hp-funnel/api/internal/domain"
)

// Address fields that must be present before rates can be fetched or a
// payment attempted. Validation marks each field independently; it never
// blocks edits.
const (
	fieldEmail    = "email"
	fieldCountry  = "country"
	fieldPostcode = "postcode"
	fieldCity     = "city"
	fieldAddress1 = "address_1"
	fieldPhone    = "phone"
)

var fieldMessages = map[string]string{
	fieldEmail:    "Valid email is required",
	fieldCountry:  "Select a valid country",
	fieldPostcode: "Postcode is required",
	fieldCity:     "City is required",
	fieldAddress1: "Address is required",
	fieldPhone:    "Phone number is required",
}

type checkoutAddressForm struct {
	Email    string `validate:"required,email"`
	Country  string `validate:"required,iso3166_known"`
	Postcode string `validate:"required"`
	City     string `validate:"required"`
	Address1 string `validate:"required"`
	Phone    string `validate:"required"`
}

var formFieldNames = map[string]string{
	"Email":    fieldEmail,
	"Country":  fieldCountry,
	"Postcode": fieldPostcode,
	"City":     fieldCity,
	"Address1": fieldAddress1,
	"Phone":    fieldPhone,
}

// AddressValidator runs the checkout-stage required-field policy.
type AddressValidator struct {
	validate *validator.Validate
}

// NewAddressValidator constructs the validator with the known-country rule
// registered.
func NewAddressValidator() *AddressValidator {
	v := validator.New()
	_ = v.RegisterValidation("iso3166_known", func(fl validator.FieldLevel) bool {
		return domain.KnownCountry(fl.Field().String())
	})
	return &AddressValidator{validate: v}
}

// Validate checks the email and address against the checkout policy and
// returns a per-field error map, empty when the address is Valid.
func (v *AddressValidator) Validate(email string, addr bridge.Address) map[string]string {
	form := checkoutAddressForm{
		Email:    email,
		Country:  addr.Country,
		Postcode: addr.Postcode,
		City:     addr.City,
		Address1: addr.Address1,
		Phone:    addr.Phone,
	}

	errs := make(map[string]string)
	if err := v.validate.Struct(form); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			errs[fieldEmail] = fieldMessages[fieldEmail]
			return errs
		}
		for _, fieldErr := range validationErrs {
			field, known := formFieldNames[fieldErr.StructField()]
			if !known {
				continue
			}
			errs[field] = fieldMessages[field]
		}
	}
	return errs
}
