package services

import (
	"context"
	"errors"

	"github.com/todoapi/apiserver/internal/store"
	"github.com/todoapi/apiserver/types"
)

// TodoRepository defines persistence operations for todo items.
type TodoRepository interface {
	List(ctx context.Context) ([]types.TodoItem, error)
	Get(ctx context.Context, id int64) (types.TodoItem, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, item types.TodoItem) (types.TodoItem, error)
	Update(ctx context.Context, item types.TodoItem) (types.TodoItem, error)
	Delete(ctx context.Context, id int64) error
}

// UserChecker reports whether a user exists.
type UserChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// TodoService encapsulates todo item use-cases.
type TodoService struct {
	repo   TodoRepository
	users  UserChecker
	events eventEmitter
}

// NewTodoService constructs a TodoService. publisher may be nil.
func NewTodoService(repo TodoRepository, users UserChecker, publisher EventPublisher) *TodoService {
	return &TodoService{
		repo:   repo,
		users:  users,
		events: eventEmitter{publisher: publisher},
	}
}

func (s *TodoService) List(ctx context.Context) ([]types.TodoItemDTO, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return types.TodoItemsToDTOs(items), nil
}

func (s *TodoService) Get(ctx context.Context, id int64) (types.TodoItemDTO, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.TodoItemDTO{}, err
	}
	return types.TodoItemToDTO(item), nil
}

// Create stores a new item for an existing user. The id in dto is ignored.
func (s *TodoService) Create(ctx context.Context, dto types.TodoItemDTO) (types.TodoItemDTO, error) {
	exists, err := s.users.Exists(ctx, dto.UserID)
	if err != nil {
		return types.TodoItemDTO{}, err
	}
	if !exists {
		return types.TodoItemDTO{}, ErrUserNotFound
	}

	created, err := s.repo.Create(ctx, types.TodoItem{
		UserID:     dto.UserID,
		Name:       dto.Name,
		IsComplete: dto.IsComplete,
	})
	if err != nil {
		// The user was deleted between the check and the insert.
		if errors.Is(err, store.ErrNotFound) {
			return types.TodoItemDTO{}, ErrUserNotFound
		}
		return types.TodoItemDTO{}, err
	}

	out := types.TodoItemToDTO(created)
	s.events.emit(ctx, types.ChannelTodoItems, types.EventTodoItemCreated, out.ID, out)
	return out, nil
}

// Replace overwrites the name and completion flag of an item.
func (s *TodoService) Replace(ctx context.Context, id int64, dto types.TodoItemDTO) error {
	if dto.ID != id {
		return ErrIDMismatch
	}

	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	item.Name = dto.Name
	item.IsComplete = dto.IsComplete

	updated, err := s.repo.Update(ctx, item)
	if err != nil {
		return resolveConflict(ctx, err, id, s.repo.Exists)
	}

	out := types.TodoItemToDTO(updated)
	s.events.emit(ctx, types.ChannelTodoItems, types.EventTodoItemUpdated, out.ID, out)
	return nil
}

func (s *TodoService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.emit(ctx, types.ChannelTodoItems, types.EventTodoItemDeleted, id, nil)
	return nil
}
