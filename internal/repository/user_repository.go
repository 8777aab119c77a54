package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"smartfile-qa/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by email failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) CreateOrGetByEmail(ctx context.Context, email string) (*model.User, error) {
	user := model.User{Email: email}
	if err := r.db.WithContext(ctx).Where(model.User{Email: email}).FirstOrCreate(&user).Error; err != nil {
		return nil, fmt.Errorf("create or get user failed: %w", err)
	}
	return &user, nil
}
