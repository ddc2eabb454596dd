package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"gousers/internal/users/domain/entities"
)

// LoginPattern - допустимые символы логина.
var LoginPattern = regexp.MustCompile(`^[_.@A-Za-z0-9-]+$`)

// UserDTO - внешнее представление пользователя.
type UserDTO struct {
	ID               int64
	Login            string
	FirstName        string
	LastName         string
	Email            string
	ImageURL         string
	Activated        bool
	LangKey          string
	CreatedBy        string
	CreatedDate      time.Time
	LastModifiedBy   string
	LastModifiedDate *time.Time
	Authorities      []string
}

// Validate проверяет ограничения полей. Ошибка оборачивает ErrInvalidUser.
func (d UserDTO) Validate() error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Login, validation.Required, validation.Length(1, 50), validation.Match(LoginPattern)),
		validation.Field(&d.Email, validation.Length(5, 254), is.Email),
		validation.Field(&d.FirstName, validation.Length(0, 50)),
		validation.Field(&d.LastName, validation.Length(0, 50)),
		validation.Field(&d.ImageURL, validation.Length(0, 256)),
		validation.Field(&d.LangKey, validation.Length(2, 10)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}
	return nil
}

// ValidateRegistration дополнительно требует e-mail.
func (d UserDTO) ValidateRegistration() error {
	if err := d.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(d.Email) == "" {
		return fmt.Errorf("%w: email: cannot be blank", ErrInvalidUser)
	}
	return nil
}

// NewUserDTO строит DTO из сущности.
func NewUserDTO(u *entities.User) *UserDTO {
	if u == nil {
		return nil
	}
	authorities := make([]string, len(u.Authorities))
	copy(authorities, u.Authorities)

	return &UserDTO{
		ID:               u.ID,
		Login:            u.Login,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Email:            u.Email,
		ImageURL:         u.ImageURL,
		Activated:        u.Activated,
		LangKey:          u.LangKey,
		CreatedBy:        u.CreatedBy,
		CreatedDate:      u.CreatedDate,
		LastModifiedBy:   u.LastModifiedBy,
		LastModifiedDate: u.LastModifiedDate,
		Authorities:      authorities,
	}
}
