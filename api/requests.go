package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MinPasswordLength is enforced locally on password change.
const MinPasswordLength = 6

// LoginRequest is the body of the token endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// RegisterRequest is the body of the registration endpoint.
type RegisterRequest struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Password2, validation.Required, validation.By(stringEquals(r.Password))),
	)
}

// RegisterResponse echoes the registered account.
type RegisterResponse struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// PasswordResetRequest asks the API to send a reset email.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r PasswordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// PasswordChangeRequest completes a reset with the values carried by the reset
// link. ConfirmPassword is checked locally and never sent.
type PasswordChangeRequest struct {
	OTP             string `json:"otp"`
	UUIDB64         string `json:"uuidb64"`
	RefreshToken    string `json:"refresh_token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will run validation rules
func (r PasswordChangeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OTP, validation.Required),
		validation.Field(&r.UUIDB64, validation.Required),
		validation.Field(&r.RefreshToken, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
		validation.Field(&r.ConfirmPassword, validation.Required, validation.By(stringEquals(r.Password))),
	)
}

type passwordChangeBody struct {
	OTP          string `json:"otp"`
	UUIDB64      string `json:"uuidb64"`
	RefreshToken string `json:"refresh_token"`
	Password     string `json:"password"`
}

func (r PasswordChangeRequest) body() passwordChangeBody {
	return passwordChangeBody{
		OTP:          r.OTP,
		UUIDB64:      r.UUIDB64,
		RefreshToken: r.RefreshToken,
		Password:     r.Password,
	}
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// tokenResponse accepts both a bare pair and a pair under a "data" envelope.
type tokenResponse struct {
	tokenPair
	Data *tokenPair `json:"data"`
}

func (r tokenResponse) pair() tokenPair {
	if r.Access == "" && r.Data != nil {
		return *r.Data
	}
	return r.tokenPair
}

func stringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("passwords do not match")
		}
		return nil
	}
}
