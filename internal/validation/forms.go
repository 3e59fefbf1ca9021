// Package validation checks request payloads and reports failures as
// field -> message key pairs. Keys are stable identifiers the client
// localizes; the server never sends prose for field errors.
package validation

import (
	"errors"
	"strings"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/security/password"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Message keys.
const (
	KeyNameRequired      = "name_required"
	KeyNameLength        = "name_length"
	KeyEmailRequired     = "email_required"
	KeyEmailInvalid      = "email_invalid"
	KeyEmailTooLong      = "email_too_long"
	KeyUsernameLength    = "username_length"
	KeyUsernameInvalid   = "username_invalid"
	KeyPasswordRequired  = "password_required"
	KeyPasswordLength    = "password_length"
	KeyPasswordMismatch  = "password_mismatch"
	KeyPasswordCommon    = "password_too_common"
	KeyTokenRequired     = "token_required"
	KeyEmailInviteDiffer = "email_invite_mismatch"
)

// RegisterForm is the registration payload.
type RegisterForm struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Token           string `json:"token"`
}

// ResetRequestForm asks for a reset link.
type ResetRequestForm struct {
	Email string `json:"email"`
}

// PasswordForm carries a one-time token and the new password. It backs both
// the reset and the set-password flows.
type PasswordForm struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validator holds the password policy and blacklist shared by every form.
type Validator struct {
	policy    password.Policy
	blacklist *password.Blacklist
}

func New(policy password.Policy, blacklist *password.Blacklist) *Validator {
	if policy.MinLength == 0 {
		policy.MinLength = 8
	}
	if policy.MaxLength == 0 {
		policy.MaxLength = 128
	}
	return &Validator{policy: policy, blacklist: blacklist}
}

func (v *Validator) Register(f RegisterForm) error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Name,
			validation.Required.Error(KeyNameRequired),
			validation.By(runeLength(3, 80, KeyNameLength)),
		),
		validation.Field(&f.Email, emailRules()...),
		validation.Field(&f.Username,
			validation.By(runeLength(2, 80, KeyUsernameLength)),
			validation.By(noSpaces(KeyUsernameInvalid)),
		),
		validation.Field(&f.Password, v.passwordRules()...),
		validation.Field(&f.ConfirmPassword, validation.By(equals(f.Password, KeyPasswordMismatch))),
	)
	return fieldErrors(err)
}

func (v *Validator) ResetRequest(f ResetRequestForm) error {
	return fieldErrors(validation.ValidateStruct(&f, validation.Field(&f.Email, emailRules()...)))
}

func (v *Validator) Password(f PasswordForm) error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Token, validation.Required.Error(KeyTokenRequired)),
		validation.Field(&f.Password, v.passwordRules()...),
		validation.Field(&f.ConfirmPassword, validation.By(equals(f.Password, KeyPasswordMismatch))),
	)
	return fieldErrors(err)
}

func emailRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(KeyEmailRequired),
		validation.By(runeLength(0, 120, KeyEmailTooLong)),
		is.Email.Error(KeyEmailInvalid),
	}
}

func (v *Validator) passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(KeyPasswordRequired),
		validation.By(v.policyRule),
		validation.By(func(value interface{}) error {
			if s, _ := value.(string); v.blacklist.Contains(s) {
				return errors.New(KeyPasswordCommon)
			}
			return nil
		}),
	}
}

// policyRule reports the first policy violation; length violations collapse
// into one key.
func (v *Validator) policyRule(value interface{}) error {
	s, _ := value.(string)
	if ok, reasons := v.policy.Validate(s); !ok {
		switch reasons[0] {
		case "password_too_short", "password_too_long":
			return errors.New(KeyPasswordLength)
		default:
			return errors.New(reasons[0])
		}
	}
	return nil
}

// runeLength skips empty values; Required covers those.
func runeLength(min, max int, key string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if n := len([]rune(s)); n < min || n > max {
			return errors.New(key)
		}
		return nil
	}
}

func noSpaces(key string) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); strings.ContainsAny(s, " \t\r\n") {
			return errors.New(key)
		}
		return nil
	}
}

func equals(want, key string) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); s != want {
			return errors.New(key)
		}
		return nil
	}
}

// fieldErrors converts ozzo errors into a domain validation error.
func fieldErrors(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return domain.ErrInternal.WithCause(err)
	}
	fields := make(map[string]string, len(errs))
	for name, fe := range errs {
		fields[name] = fe.Error()
	}
	return domain.Validation(fields)
}

// MessageKeys lists every key a client may need to localize.
func MessageKeys() []string {
	return []string{
		KeyNameRequired, KeyNameLength, KeyEmailRequired, KeyEmailInvalid, KeyEmailTooLong,
		KeyUsernameLength, KeyUsernameInvalid, KeyPasswordRequired, KeyPasswordLength,
		KeyPasswordMismatch, KeyPasswordCommon, KeyTokenRequired, KeyEmailInviteDiffer,
		"password_missing_upper", "password_missing_lower", "password_missing_digit", "password_missing_symbol",
	}
}
