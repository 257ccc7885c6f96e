package utils

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// ValidateStruct runs the payload's `validate` tags and returns the raw error.
// Use ProcessValidationErrors to turn it into a field->tag map for responses.
func ValidateStruct(obj interface{}) error {
	return validate.Struct(obj)
}

func ProcessValidationErrors(err error) map[string]string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"error": err.Error()}
	}

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// RoundQuantity applies the ledger-wide quantity precision (4 decimal places,
// half-up). Every computed leg quantity goes through this before persisting.
func RoundQuantity(qty decimal.Decimal) decimal.Decimal {
	return qty.Round(4)
}

func UniqueSlice[T comparable](in []T) []T {
	seen := make(map[T]bool, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
