// Package validate checks request schemas before they reach the services.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"scrapPickup/internal/errs"
	"scrapPickup/internal/geo"
	"scrapPickup/models"
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		mustRegister(v, "scraptype", func(fl validator.FieldLevel) bool {
			_, ok := models.ParseScrapType(fl.Field().String())
			return ok
		})
		mustRegister(v, "orderstatus", func(fl validator.FieldLevel) bool {
			_, ok := models.ParseOrderStatus(fl.Field().String())
			return ok
		})
		mustRegister(v, "paymentmethod", func(fl validator.FieldLevel) bool {
			_, ok := models.ParsePaymentMethod(fl.Field().String())
			return ok
		})
		mustRegister(v, "lat", func(fl validator.FieldLevel) bool {
			return geo.ValidLatitude(fl.Field().Float())
		})
		mustRegister(v, "lng", func(fl validator.FieldLevel) bool {
			return geo.ValidLongitude(fl.Field().Float())
		})
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// Struct validates s against its `validate` tags and returns an *errs.Error of
// kind Validation naming every failing field.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Validation("invalid request", nil)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return errs.Validation(summary(fields), fields)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "scraptype":
		return "must be a known scrap type"
	case "orderstatus":
		return "must be a known order status"
	case "paymentmethod":
		return "must be Cash, UPI or Bank Transfer"
	case "lat", "lng":
		return "is out of range"
	case "url":
		return "must be a URL"
	}
	return "failed " + fe.Tag()
}

func summary(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+" "+fields[n])
	}
	return strings.Join(parts, "; ")
}
