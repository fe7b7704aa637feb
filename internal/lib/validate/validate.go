// Package validate собирает валидатор запросов HTTP-обработчиков.
package validate

import (
	"time"

	"github.com/go-playground/validator"
)

// New возвращает валидатор с дополнительным тегом datetime=<layout>:
// строка должна разбираться time.Parse с указанным layout.
func New() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("datetime", isDatetime); err != nil {
		panic(err)
	}
	return v
}

func isDatetime(fl validator.FieldLevel) bool {
	_, err := time.Parse(fl.Param(), fl.Field().String())
	return err == nil
}
