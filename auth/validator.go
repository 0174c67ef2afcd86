package auth

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// MaxNameLength bounds a display name, in characters.
const MaxNameLength = 32

var validate = validator.New()

// LoginRequest is the admission input for a display name.
// A comma would split the name in the user list.
type LoginRequest struct {
	Name string `validate:"required,max=32,excludesall=0x2C"`
}

// BlockList reports whether a name contains a forbidden word.
type BlockList interface {
	Blocked(name string) (string, bool)
}

// NameValidator decides whether a proposed display name may be registered.
type NameValidator struct {
	blockList BlockList
}

func NewNameValidator(blockList BlockList) *NameValidator {
	return &NameValidator{blockList: blockList}
}

// Validate returns an error wrapping errors.ErrInvalidName with a reason suitable for LoginFail.
func (v *NameValidator) Validate(name string) error {
	if err := validate.Struct(LoginRequest{Name: name}); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidName, describe(err))
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: control characters are not allowed", errors.ErrInvalidName)
	}
	if strings.EqualFold(name, domain.SystemSender) {
		return fmt.Errorf("%w: %q is reserved", errors.ErrInvalidName, name)
	}
	if v.blockList != nil {
		if word, blocked := v.blockList.Blocked(name); blocked {
			return fmt.Errorf("%w: contains the blocked word %q", errors.ErrInvalidName, word)
		}
	}
	return nil
}

func describe(err error) string {
	ve, ok := err.(validator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return err.Error()
	}
	switch ve[0].Tag() {
	case "required":
		return "a name is required"
	case "max":
		return fmt.Sprintf("a name is at most %d characters long", MaxNameLength)
	case "excludesall":
		return "a name cannot contain a comma"
	default:
		return ve[0].Error()
	}
}
