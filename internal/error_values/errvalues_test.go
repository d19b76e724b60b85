package errorvalues_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	errorvalues "github.com/limbo/stakesave/internal/error_values"
)

func TestInvalidParameter(t *testing.T) {
	err := errorvalues.InvalidParameter("dailyAmount>0")
	assert.ErrorIs(t, err, errorvalues.ErrInvalidParameter)
	assert.Equal(t, "invalid parameter: dailyAmount>0", err.Error())

	var pe *errorvalues.ParamError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "dailyAmount>0", pe.Field)
}

func TestTransferDenied(t *testing.T) {
	err := errorvalues.TransferDenied(errorvalues.ErrInsufficientAllowance)
	assert.ErrorIs(t, err, errorvalues.ErrTransferDenied)
	assert.ErrorIs(t, err, errorvalues.ErrInsufficientAllowance)
	assert.NotErrorIs(t, err, errorvalues.ErrInsufficientFunds)
	assert.Equal(t, "transfer denied: insufficient allowance", err.Error())
}
