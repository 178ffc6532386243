package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/todoapi/apiserver/internal/services"
	"github.com/todoapi/apiserver/internal/store"
	"github.com/todoapi/apiserver/types"
)

// TodoHandler provides HTTP handlers for todo items.
type TodoHandler struct {
	todoService *services.TodoService
}

func NewTodoHandler(todoService *services.TodoService) *TodoHandler {
	return &TodoHandler{todoService: todoService}
}

// TodoRouter registers todo item routes on the given router.
func TodoRouter(r chi.Router, todoService *services.TodoService) {
	handler := NewTodoHandler(todoService)

	r.Get("/", handler.ListTodoItems)
	r.Post("/", handler.CreateTodoItem)
	r.Route("/{todoID}", func(r chi.Router) {
		r.Get("/", handler.GetTodoItem)
		r.Put("/", handler.ReplaceTodoItem)
		r.Delete("/", handler.DeleteTodoItem)
	})
}

func (h *TodoHandler) ListTodoItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.todoService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list todo items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *TodoHandler) GetTodoItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "todoID", "todo item")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.todoService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "todo item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch todo item")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *TodoHandler) CreateTodoItem(w http.ResponseWriter, r *http.Request) {
	var req types.TodoItemDTO
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.todoService.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user does not exist")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create todo item")
		return
	}

	createdAt(w, r, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *TodoHandler) ReplaceTodoItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "todoID", "todo item")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req types.TodoItemDTO
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.todoService.Replace(r.Context(), id, req); err != nil {
		switch {
		case errors.Is(err, services.ErrIDMismatch):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "todo item not found")
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "todo item was modified concurrently")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update todo item")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) DeleteTodoItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "todoID", "todo item")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.todoService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "todo item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete todo item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
