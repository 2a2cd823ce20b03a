package services

import (
	"context"
	"errors"
	"strings"

	"design-portal-backend/internal/forms"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

type ContactInput struct {
	FirstName string `validate:"required,notblank"`
	Email     string `validate:"required,email"`
	Message   string `validate:"required,notblank"`
}

type FormSubmitter interface {
	Submit(ctx context.Context, submission forms.Submission) error
}

type ContactService struct {
	forms    FormSubmitter
	validate *validator.Validate
}

func NewContactService(submitter FormSubmitter) *ContactService {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return &ContactService{forms: submitter, validate: v}
}

func (s *ContactService) Submit(ctx context.Context, in ContactInput) error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.Email = strings.TrimSpace(in.Email)
	in.Message = strings.TrimSpace(in.Message)

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Email" {
			return invalid("Please enter a valid email address")
		}
		return invalid("Please fill in your name, email and message")
	}

	return s.forms.Submit(ctx, forms.Submission{Fields: []forms.Field{
		{Name: "firstname", Value: in.FirstName},
		{Name: "email", Value: in.Email},
		{Name: "message", Value: in.Message},
	}})
}
