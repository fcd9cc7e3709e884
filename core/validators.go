package core

import (
	"reflect"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/adribv/edutool/core/rbac"
)

var (
	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "{0} must not be blank"

	staffRoleTag  = "staff_role"
	staffRoleText = "{0} must be a known staff role"

	moduleKeyTag  = "module_key"
	moduleKeyText = "{0} must be a known module"

	moduleLevelTag  = "module_level"
	moduleLevelText = "{0} must be one of No Access, View Access, Edit Access"

	activityKeyTag  = "activity_key"
	activityKeyText = "{0} must be a known activity"

	activityLevelTag  = "activity_level"
	activityLevelText = "{0} must be one of Unauthorized, View, Edit, Approve"

	approvalKeyTag  = "approval_key"
	approvalKeyText = "{0} must be one of leaves, expenses, events, communications"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	register := func(tag, text string, fn validator.Func) {
		_ = validate.RegisterValidation(tag, fn)
		RegisterCustomTranslation(validate, translator, tag, text)
	}
	register(notBlankTag, notBlankText, notBlankValidation)
	register(staffRoleTag, staffRoleText, stringValidation(func(s string) bool { return rbac.Role(s).Valid() }))
	register(moduleKeyTag, moduleKeyText, stringValidation(func(s string) bool { return rbac.Module(s).Valid() }))
	register(moduleLevelTag, moduleLevelText, stringValidation(func(s string) bool { return rbac.ModuleScale.Valid(rbac.Level(s)) }))
	register(activityKeyTag, activityKeyText, stringValidation(func(s string) bool { return rbac.Activity(s).Valid() }))
	register(activityLevelTag, activityLevelText, stringValidation(func(s string) bool { return rbac.ActivityScale.Valid(rbac.Level(s)) }))
	register(approvalKeyTag, approvalKeyText, stringValidation(func(s string) bool { return rbac.ApprovalKey(s).Valid() }))

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// notBlankValidation rejects strings made only of whitespace.
func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// stringValidation applies ok to string fields; other kinds never validate.
func stringValidation(ok func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		return ok(fl.Field().String())
	}
}
