package store

import (
	"context"
	"errors"

	"github.com/todoapi/apiserver/types"
	"gorm.io/gorm"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

// List returns every user with its todos loaded.
func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	users := make([]types.User, 0)
	if err := r.db.WithContext(ctx).
		Preload("Todos", orderByID).
		Order("id").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Get returns the user with its todos loaded.
func (r *UserRepository) Get(ctx context.Context, id int64) (types.User, error) {
	var user types.User
	err := r.db.WithContext(ctx).
		Preload("Todos", orderByID).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a user without todos. The id is always generated.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	user.ID = 0
	user.Version = 1
	user.Todos = nil

	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		return types.User{}, err
	}
	user.Todos = []types.TodoItem{}
	return user, nil
}

// Update writes the user's columns if its version still matches the stored
// one, and returns ErrConflict otherwise. Todos are not touched.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	result := r.db.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ? AND version = ?", user.ID, user.Version).
		Updates(map[string]any{
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"banned":     user.Banned,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return types.User{}, result.Error
	}
	if result.RowsAffected == 0 {
		return types.User{}, ErrConflict
	}
	user.Version++
	return user, nil
}

// Delete removes the user and every todo it owns in one transaction.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&types.TodoItem{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&types.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
