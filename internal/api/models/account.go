package models

import "github.com/veilchat/veilchat/pkg/jid"

// Password length bounds for registration and login.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// AccountRegisterRequest creates a new account.
type AccountRegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the registration input.
func (r *AccountRegisterRequest) Validate() []FieldError {
	return validateCredentials(r.Username, r.Password)
}

// AccountRegisterResponse is returned after a successful registration.
type AccountRegisterResponse struct {
	JID    string `json:"jid"`
	Status string `json:"status"`
	Token  string `json:"token"`
}

// AccountLoginRequest authenticates an existing account.
type AccountLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the login input.
func (r *AccountLoginRequest) Validate() []FieldError {
	return validateCredentials(r.Username, r.Password)
}

// AccountLoginResponse carries a fresh bearer token.
type AccountLoginResponse struct {
	JID   string `json:"jid"`
	Token string `json:"token"`
}

// AccountDeleteRequest removes an account and all associated data. The
// password is required as a confirmation step.
type AccountDeleteRequest struct {
	JID      string `json:"jid"`
	Password string `json:"password"`
}

// Validate checks the deletion input.
func (r *AccountDeleteRequest) Validate() []FieldError {
	var errs []FieldError
	if r.JID == "" {
		errs = append(errs, FieldError{Field: "jid", Message: "is required"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "is required"})
	}
	return errs
}

// Me is the authenticated account view.
type Me struct {
	JID     string   `json:"jid"`
	Devices []Device `json:"devices"`
}

// AccountExport is the data-export document for an account: the SIP
// subscriber presence flag and every stored push registration.
type AccountExport struct {
	JID           string    `json:"jid"`
	SIPSubscriber bool      `json:"sip_subscriber"`
	Devices       []Device  `json:"devices"`
	ExportedAt    Timestamp `json:"exported_at"`
}

func validateCredentials(username, password string) []FieldError {
	var errs []FieldError
	if username == "" {
		errs = append(errs, FieldError{Field: "username", Message: "is required"})
	} else if !jid.ValidLocalpart(username) {
		errs = append(errs, FieldError{Field: "username", Message: "must be 3-32 characters of letters, digits, or underscore"})
	}
	if password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "is required"})
	} else if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		errs = append(errs, FieldError{Field: "password", Message: "must be between 8 and 128 characters"})
	}
	return errs
}
