package service

import (
	"errors"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	errorvalues "github.com/limbo/stakesave/internal/error_values"
)

// Package for custom validations
var (
	validate *validator.Validate
	once     sync.Once
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Field names reported with ErrInvalidParameter
var paramNames = map[string]string{
	"Asset":          "invalid-token",
	"DailyAmount":    "dailyAmount>0",
	"TotalDays":      "totalDays>0",
	"PenaltyStake":   "penaltyStake>0",
	"PenaltyPercent": "penaltyPercent<=100",
}

func InitValidator() {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("asset_ref", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			if value == "" || strings.EqualFold(value, zeroAddress) {
				return false
			}
			for _, char := range value {
				// Letters, digits, dot, dash or underscore
				if !unicode.IsLetter(char) && !unicode.IsDigit(char) && !strings.ContainsRune("._-", char) {
					return false
				}
			}
			return true
		})
	})
}

// validationError turns the first failed field into a named InvalidParameter error
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if name, ok := paramNames[verrs[0].StructField()]; ok {
			return errorvalues.InvalidParameter(name)
		}
		return errorvalues.InvalidParameter(verrs[0].StructField())
	}
	return errorvalues.InvalidParameter(err.Error())
}
