package errors_test

import (
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrInvalidInterval)
	assert.Equal(t, "Invalid interval value", err.Error())

	err = errFactory.Wrap(errors.ErrOperationFailed, stderrors.New("boom"))
	assert.Equal(t, "Operation failed: boom", err.Error())

	err = errFactory.WithData(errors.ErrInvalidArgument, -5)
	assert.Equal(t, "Invalid argument provided: -5", err.Error())

	err = errFactory.WithMessage(errors.ErrInternal, "custom")
	assert.Equal(t, "custom", err.Error())

	assert.Equal(t, "unknown_code", errFactory.New(errors.ErrorCode("unknown_code")).Error())
}

func TestWithMessageKeepsCode(t *testing.T) {
	cause := stderrors.New("cause")
	err := errors.New().Wrap(errors.ErrTimeout, cause).WithMessage("send timed out")

	assert.Equal(t, errors.ErrTimeout, err.Code())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "send timed out: cause", err.Error())
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()
	inner := errFactory.New(errors.ErrInvalidInterval)
	outer := errFactory.Wrap(errors.ErrInvalidConfig, inner)

	assert.True(t, errors.HasCode(outer, errors.ErrInvalidConfig))
	assert.True(t, errors.HasCode(outer, errors.ErrInvalidInterval))
	assert.False(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))

	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(outer))
	assert.Equal(t, errors.ErrorCode(""), errors.CodeOf(stderrors.New("plain")))
}

func TestRegisterMessages(t *testing.T) {
	code := errors.ErrorCode("test_registered_code")
	assert.Equal(t, "test_registered_code", errors.GetErrorMessage(code))

	errors.RegisterMessages(map[errors.ErrorCode]string{code: "Registered message"})

	assert.Equal(t, "Registered message", errors.New().New(code).Error())
	assert.Equal(t, "Registered message: boom", errors.New().Wrap(code, stderrors.New("boom")).Error())
}
