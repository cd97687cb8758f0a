package account

import (
	"strings"
	"time"

	apperrors "social-backend/backend/pkg/errors"
)

// Collection holds account documents
const Collection = "accounts"

// Profile defaults for new accounts
const (
	DefaultImage           = "https://cdn-icons-png.flaticon.com/512/711/711769.png"
	DefaultPageImage       = "https://www.solidbackgrounds.com/images/1920x1080/1920x1080-black-solid-color-background.jpg"
	DefaultPageDescription = "Nenhuma descrição"
)

// Account is a registered user. The social core only references accounts by ID.
type Account struct {
	ID              string    `bson:"_id" json:"id"`
	Name            string    `bson:"name" json:"name"`
	Email           string    `bson:"email" json:"email"`
	PasswordHash    string    `bson:"passwordHash" json:"-"`
	Image           string    `bson:"image" json:"image"`
	PageImage       string    `bson:"pageImage" json:"pageImage"`
	PageDescription string    `bson:"pageDescription" json:"pageDescription"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}

// Summary is the display-ready view of an account
type Summary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Summary returns the display view of a
func (a Account) Summary() Summary {
	return Summary{ID: a.ID, Name: a.Name, Image: a.Image}
}

// ValidateID rejects empty identifiers and ones carrying whitespace or the pair separator
func ValidateID(field, id string) error {
	if id == "" {
		return apperrors.NewInvalidInput(field, "required")
	}
	if strings.ContainsAny(id, " \t\r\n:") {
		return apperrors.NewInvalidInput(field, "malformed identifier")
	}
	return nil
}
