package models

import (
	"strings"

	"github.com/wkbook/phonebook/server/auth"
)

const DEFAULT_SUBSCRIPTION = "starter"

var allUserFieldsExceptPassword = []string{
	"id",
	"email",
	"subscription",
	"avatar_url",
	"verification_token",
	"verify",
	"created_at",
	"updated_at",
}

type User struct {
	BaseModel
	Email        string `json:"email" validate:"required,email" gorm:"not null;unique"`
	Password     string `json:"password,omitempty" validate:"required,min=6" gorm:"not null"`
	Subscription string `json:"subscription" validate:"omitempty,oneof=starter pro business" gorm:"default:starter"`
	AvatarURL    string `json:"avatarURL"`

	// VerificationToken is single-use: cleared the moment the account is verified.
	VerificationToken *string `json:"-" gorm:"unique"`
	Verify            bool    `json:"verify" gorm:"default:false"`

	// Token is a legacy session field; logout clears it but issued JWTs
	// stay valid, there is no server-side revocation.
	Token *string `json:"-"`
}

// CreateUser hashes the user's password & persists the record. A duplicate
// email surfaces as a unique-constraint error, see IsDuplicateEmailErr.
func CreateUser(user *User) error {
	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = passwordHash

	if user.Subscription == "" {
		user.Subscription = DEFAULT_SUBSCRIPTION
	}

	return db.Create(user).Error
}

func FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := db.Select(allUserFieldsExceptPassword).First(&user, field+" = ?", value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func FindUserByVerificationToken(token string) (*User, error) {
	user := User{}
	err := db.Select(allUserFieldsExceptPassword).First(&user, "verification_token = ?", token).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func FindUserPassword(email string) (string, error) {
	user := &User{}
	err := db.Select("Password").First(user, "email = ?", email).Error
	if err != nil {
		return "", err
	}

	return user.Password, nil
}

func (user *User) UpdateAvatarURL(avatarURL string) error {
	err := db.Model(&User{}).Where("id = ?", user.ID).Update("avatar_url", avatarURL).Error
	if err != nil {
		return err
	}

	user.AvatarURL = avatarURL
	return nil
}

// MarkVerified flips the verify flag & clears the verification token,
// so the same token can never verify twice.
func (user *User) MarkVerified() error {
	err := db.Model(&User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{"verify": true, "verification_token": nil}).Error
	if err != nil {
		return err
	}

	user.Verify = true
	user.VerificationToken = nil
	return nil
}

func (user *User) AssignVerificationToken(token string) error {
	err := db.Model(&User{}).Where("id = ?", user.ID).Update("verification_token", token).Error
	if err != nil {
		return err
	}

	user.VerificationToken = &token
	return nil
}

func DeleteUser(id interface{}) error {
	return db.Delete(&User{}, id).Error
}

func (user *User) ClearSessionToken() error {
	return db.Model(&User{}).Where("id = ?", user.ID).Update("token", nil).Error
}

// IsDuplicateEmailErr reports whether err is the users.email unique-constraint
// violation raised by sqlite on concurrent or repeated signups.
func IsDuplicateEmailErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: users.email")
}
