package utils

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("calendardate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(time.DateOnly, fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("clocktime", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			for _, layout := range []string{"15:04", "15:04:05"} {
				if _, err := time.Parse(layout, s); err == nil {
					return true
				}
			}
			return false
		})
	})
	return validate
}

// Validate performs validation on a struct.
func Validate(s interface{}) error {
	return validatorInstance().Struct(s)
}

// FormatValidationError formats validation errors into a readable string.
func FormatValidationError(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		var errorMessages []string
		for _, e := range errs {
			errorMessages = append(errorMessages, describe(e))
		}
		return strings.Join(errorMessages, ", ")
	}
	return err.Error()
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "calendardate":
		return fmt.Sprintf("%s must be a YYYY-MM-DD date", e.Field())
	case "clocktime":
		return fmt.Sprintf("%s must be an HH:MM time", e.Field())
	default:
		return fmt.Sprintf("%s failed %s", e.Field(), e.Tag())
	}
}

// BindAndValidate binds the request body to a struct and validates it.
// If validation fails, it sends a BadRequest response and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			BadRequest(c, "Validation failed: "+FormatValidationError(err))
			return false
		}
		BadRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	if err := Validate(obj); err != nil {
		BadRequest(c, "Validation failed: "+FormatValidationError(err))
		return false
	}
	return true
}
