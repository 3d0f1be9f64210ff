package models

import "gorm.io/gorm"

// Contact is a global collection entry; records are not scoped per user.
type Contact struct {
	BaseModel
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Favorite bool   `json:"favorite"`
}

var updatableContactFields = map[string]bool{
	"name":  true,
	"email": true,
	"phone": true,
}

// UpdatableContactFields returns the set of fields a PUT may touch.
func UpdatableContactFields() map[string]bool {
	fields := make(map[string]bool, len(updatableContactFields))
	for field := range updatableContactFields {
		fields[field] = true
	}

	return fields
}

// AllContacts lists contacts, optionally filtered by favorite, a page at a time.
func AllContacts(favorite *bool, page, pageSize int) ([]Contact, error) {
	contacts := []Contact{}

	query := db.Scopes(paginate(page, pageSize))
	if favorite != nil {
		query = query.Where("favorite = ?", *favorite)
	}

	err := query.Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

func FindContact(id interface{}) (*Contact, error) {
	contact := Contact{}
	err := db.First(&contact, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

func CreateContact(contact *Contact) error {
	return db.Create(contact).Error
}

// UpdateContact applies data to the record & returns the updated row, or
// gorm.ErrRecordNotFound when the id does not resolve.
func UpdateContact(id interface{}, data map[string]interface{}) (*Contact, error) {
	result := db.Model(&Contact{}).Where("id = ?", id).Updates(data)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return FindContact(id)
}

// UpdateContactFavorite flips only the favorite flag, leaving the rest of the
// record untouched.
func UpdateContactFavorite(id interface{}, favorite bool) (*Contact, error) {
	return UpdateContact(id, map[string]interface{}{"favorite": favorite})
}

func DeleteContact(id interface{}) error {
	result := db.Delete(&Contact{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
