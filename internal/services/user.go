package services

import (
	"context"

	"github.com/todoapi/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context) ([]types.User, error)
	Get(ctx context.Context, id int64) (types.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	// Delete removes the user and all of its todo items.
	Delete(ctx context.Context, id int64) error
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	events eventEmitter
}

// NewUserService constructs a UserService. publisher may be nil.
func NewUserService(repo UserRepository, publisher EventPublisher) *UserService {
	return &UserService{
		repo:   repo,
		events: eventEmitter{publisher: publisher},
	}
}

func (s *UserService) List(ctx context.Context) ([]types.UserDTO, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return types.UsersToDTOs(users), nil
}

func (s *UserService) Get(ctx context.Context, id int64) (types.UserDTO, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.UserDTO{}, err
	}
	return types.UserToDTO(user), nil
}

// Create stores a new user with no todos. Only the names are taken from dto.
func (s *UserService) Create(ctx context.Context, dto types.UserDTO) (types.UserDTO, error) {
	created, err := s.repo.Create(ctx, types.User{
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
	})
	if err != nil {
		return types.UserDTO{}, err
	}

	out := types.UserToDTO(created)
	s.events.emit(ctx, types.ChannelUsers, types.EventUserCreated, out.ID, out)
	return out, nil
}

// Replace overwrites the user's last name. Other fields in dto are ignored.
func (s *UserService) Replace(ctx context.Context, id int64, dto types.UserDTO) error {
	if dto.ID != id {
		return ErrIDMismatch
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	user.LastName = dto.LastName

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return resolveConflict(ctx, err, id, s.repo.Exists)
	}

	out := types.UserToDTO(updated)
	s.events.emit(ctx, types.ChannelUsers, types.EventUserUpdated, out.ID, out)
	return nil
}

// Delete removes the user with the given id together with its todo items.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.emit(ctx, types.ChannelUsers, types.EventUserDeleted, id, nil)
	return nil
}
