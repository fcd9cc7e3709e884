package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
)

// NewValidator returns a validator with the application's custom tags and english translations.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate, translator
}

func CreateStaff(
	t *testing.T,
	repo staff.Repository,
	id, name, email string,
	role rbac.Role,
	department string,
	createdAt ...time.Time,
) staff.Staff {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	s, err := repo.CreateStaff(context.Background(), staff.Staff{
		ID:         id,
		Name:       name,
		Email:      email,
		Role:       role,
		Department: department,
		IsActive:   true,
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStaff() failed: %v", err)
	}
	return s
}

func IntPtr(i int) *int { return &i }
