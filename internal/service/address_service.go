package service

import (
	"context"
	"errors"
	"portal/internal/entity"
	"portal/internal/model"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
)

var (
	errAddressNameEmpty = errors.New("宛名を入力してください")
	errAddressNameLong  = errors.New("宛名は100文字以内で入力してください")
)

// AddressService 收货地址，所有操作都限定在 userID 名下
type AddressService struct {
	repo model.Repository
}

func NewAddressService(repo model.Repository) *AddressService {
	return &AddressService{repo: repo}
}

func (s *AddressService) List(ctx context.Context, userID uint) ([]entity.DbAddress, error) {
	return s.repo.ListAddresses(ctx, userID)
}

func (s *AddressService) Get(ctx context.Context, id, userID uint) (*entity.DbAddress, error) {
	address, err := s.repo.GetAddress(ctx, id, userID)
	if err != nil {
		return nil, notFoundAs(err, ErrAddressNotFound)
	}
	return address, nil
}

func (s *AddressService) Add(ctx context.Context, userID uint, form entity.AddressForm) (*entity.DbAddress, error) {
	if err := validateAddress(form); err != nil {
		return nil, err
	}
	address := &entity.DbAddress{
		UserID:       userID,
		Name:         strings.TrimSpace(form.Name),
		PostalCode:   strings.TrimSpace(form.PostalCode),
		Prefecture:   strings.TrimSpace(form.Prefecture),
		City:         strings.TrimSpace(form.City),
		AddressLine1: strings.TrimSpace(form.AddressLine1),
		AddressLine2: strings.TrimSpace(form.AddressLine2),
		Phone:        strings.TrimSpace(form.Phone),
		IsDefault:    form.IsDefault,
		IsActive:     true,
	}
	if err := s.repo.CreateAddress(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

func (s *AddressService) Edit(ctx context.Context, userID uint, form entity.AddressForm) error {
	if err := validateAddress(form); err != nil {
		return err
	}
	trim := func(v string) *string {
		v = strings.TrimSpace(v)
		return &v
	}
	updates := entity.AddressUpdates{
		Name:         trim(form.Name),
		PostalCode:   trim(form.PostalCode),
		Prefecture:   trim(form.Prefecture),
		City:         trim(form.City),
		AddressLine1: trim(form.AddressLine1),
		AddressLine2: trim(form.AddressLine2),
		Phone:        trim(form.Phone),
	}
	if err := s.repo.UpdateAddress(ctx, form.AddressID, userID, updates); err != nil {
		return notFoundAs(err, ErrAddressNotFound)
	}
	if form.IsDefault {
		return notFoundAs(s.repo.SetDefaultAddress(ctx, form.AddressID, userID), ErrAddressNotFound)
	}
	return nil
}

func (s *AddressService) Delete(ctx context.Context, id, userID uint) error {
	return notFoundAs(s.repo.DeleteAddress(ctx, id, userID), ErrAddressNotFound)
}

func (s *AddressService) SetDefault(ctx context.Context, id, userID uint) error {
	return notFoundAs(s.repo.SetDefaultAddress(ctx, id, userID), ErrAddressNotFound)
}

func validateAddress(form entity.AddressForm) error {
	name := strings.TrimSpace(form.Name)
	switch {
	case name == "":
		return &ValidationError{Messages: []string{errAddressNameEmpty.Error()}}
	case utf8.RuneCountInString(name) > 100:
		return &ValidationError{Messages: []string{errAddressNameLong.Error()}}
	}
	return nil
}

func notFoundAs(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}
