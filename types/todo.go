package types

// TodoItem represents a single task owned by exactly one user.
type TodoItem struct {
	// ID is the unique identifier of the item.
	ID int64 `json:"id" gorm:"primaryKey"`

	// UserID identifies the owning user.
	UserID int64 `json:"user_id" gorm:"not null;index"`

	// Name is the optional description of the task.
	Name *string `json:"name"`

	// IsComplete reports whether the task is done.
	IsComplete bool `json:"is_complete" gorm:"not null"`

	// Secret is internal data attached to the item.
	// This field is never exposed in API responses.
	Secret *string `json:"-"`

	// Version is the optimistic concurrency token.
	Version int64 `json:"-" gorm:"not null"`
}

func (TodoItem) TableName() string {
	return "todo_items"
}

// TodoItemDTO is the public projection of a TodoItem.
type TodoItemDTO struct {
	ID         int64   `json:"id"`
	UserID     int64   `json:"userId"`
	Name       *string `json:"name"`
	IsComplete bool    `json:"isComplete"`
}

// UserTodoDTO is a TodoItem nested under its owner, so it carries no owner id.
type UserTodoDTO struct {
	ID         int64   `json:"id"`
	Name       *string `json:"name"`
	IsComplete bool    `json:"isComplete"`
}

func TodoItemToDTO(item TodoItem) TodoItemDTO {
	return TodoItemDTO{
		ID:         item.ID,
		UserID:     item.UserID,
		Name:       item.Name,
		IsComplete: item.IsComplete,
	}
}

func TodoItemsToDTOs(items []TodoItem) []TodoItemDTO {
	dtos := make([]TodoItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, TodoItemToDTO(item))
	}
	return dtos
}

func UserTodoToDTO(item TodoItem) UserTodoDTO {
	return UserTodoDTO{
		ID:         item.ID,
		Name:       item.Name,
		IsComplete: item.IsComplete,
	}
}
