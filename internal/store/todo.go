package store

import (
	"context"
	"errors"

	"github.com/todoapi/apiserver/types"
	"gorm.io/gorm"
)

// TodoRepository handles persistence for todo items.
type TodoRepository struct {
	db *gorm.DB
}

func NewTodoRepository(db *gorm.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) List(ctx context.Context) ([]types.TodoItem, error) {
	items := make([]types.TodoItem, 0)
	if err := r.db.WithContext(ctx).Order("id").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *TodoRepository) Get(ctx context.Context, id int64) (types.TodoItem, error) {
	var item types.TodoItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.TodoItem{}, ErrNotFound
		}
		return types.TodoItem{}, err
	}
	return item, nil
}

func (r *TodoRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&types.TodoItem{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts an item with a generated id. It returns ErrNotFound when the
// owning user does not exist.
func (r *TodoRepository) Create(ctx context.Context, item types.TodoItem) (types.TodoItem, error) {
	item.ID = 0
	item.Version = 1

	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		if isForeignKeyViolation(err) {
			return types.TodoItem{}, ErrNotFound
		}
		return types.TodoItem{}, err
	}
	return item, nil
}

// Update writes name and completion if the item's version still matches,
// and returns ErrConflict otherwise. Owner and secret are never changed here.
func (r *TodoRepository) Update(ctx context.Context, item types.TodoItem) (types.TodoItem, error) {
	result := r.db.WithContext(ctx).
		Model(&types.TodoItem{}).
		Where("id = ? AND version = ?", item.ID, item.Version).
		Updates(map[string]any{
			"name":        item.Name,
			"is_complete": item.IsComplete,
			"version":     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return types.TodoItem{}, result.Error
	}
	if result.RowsAffected == 0 {
		return types.TodoItem{}, ErrConflict
	}
	item.Version++
	return item, nil
}

func (r *TodoRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&types.TodoItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
