package handler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/makkenzo/license-key-service/internal/domain/license"
	"github.com/makkenzo/license-key-service/internal/ierr"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by the request DTOs.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		err = v.RegisterValidation("keytype", func(fl validator.FieldLevel) bool {
			_, parseErr := license.ParseType(fl.Field().String())
			return parseErr == nil
		})
	})
	return err
}

// bindError keeps field errors intact for the error middleware and marks
// anything else, such as malformed JSON, as a validation failure.
func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return fmt.Errorf("%w: %v", ierr.ErrValidation, err)
}
