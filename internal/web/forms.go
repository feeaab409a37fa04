// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package web

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
)

type credentialsForm struct {
	Email    string `form:"email" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type registerForm struct {
	Email    string `form:"email" validate:"required,email,max=254"`
	Password string `form:"password" validate:"required"`
}

type resetRequestForm struct {
	Email string `form:"email" validate:"required"`
}

type resetForm struct {
	Email       string `form:"email"`
	ResetToken  string `form:"reset_token" validate:"required"`
	NewPassword string `form:"new_password" validate:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		return name
	})
	return v
}

// bindForm decodes the request's form values into dst by their form tag,
// then validates it. The returned message is empty on success.
func (s *Server) bindForm(r *http.Request, dst any) (string, error) {
	if err := r.ParseForm(); err != nil {
		return "malformed form", nil
	}
	if err := s.forms.Decode(dst, r.Form); err != nil {
		var derrs form.DecodeErrors
		if errors.As(err, &derrs) {
			return "malformed form", nil
		}
		return "", err
	}

	err := s.validate.Struct(dst)
	if err == nil {
		return "", nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "", err
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return fe.Field() + " missing", nil
	}
	return fe.Field() + " invalid", nil
}
