package types

// User represents an account that owns todo items.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" gorm:"primaryKey"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" gorm:"not null"`

	// LastName is the user's family name. It is the only field that can be
	// changed after creation.
	LastName string `json:"last_name" gorm:"not null"`

	// Banned marks a user as banned.
	// This field is never exposed in API responses.
	Banned bool `json:"-" gorm:"not null"`

	// Version is the optimistic concurrency token. It starts at 1 and is
	// incremented on every update.
	Version int64 `json:"-" gorm:"not null"`

	// Todos are the items owned by the user. Deleting the user deletes them.
	Todos []TodoItem `json:"todos,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string {
	return "users"
}

// UserDTO is the public projection of a User. It hides Banned and nests the
// user's todos without their owner id.
type UserDTO struct {
	ID        int64         `json:"id"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Todo      []UserTodoDTO `json:"todo"`
}

// UserToDTO projects a user and its loaded todos.
func UserToDTO(user User) UserDTO {
	todos := make([]UserTodoDTO, 0, len(user.Todos))
	for _, item := range user.Todos {
		todos = append(todos, UserTodoToDTO(item))
	}
	return UserDTO{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Todo:      todos,
	}
}

// UsersToDTOs projects a slice of users.
func UsersToDTOs(users []User) []UserDTO {
	dtos := make([]UserDTO, 0, len(users))
	for _, user := range users {
		dtos = append(dtos, UserToDTO(user))
	}
	return dtos
}
