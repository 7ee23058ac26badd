package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/service"
)

// TokenRequest defines the payload for the password login endpoint.
type TokenRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// TokenResponse is the token pair issued by the login and refresh endpoints.
type TokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// BotAuthRequest identifies the chat account the bot acts for.
type BotAuthRequest struct {
	TelegramUserID int64  `json:"telegram_user_id" validate:"required,gt=0"`
	ChatID         int64  `json:"chat_id"          validate:"required"`
	Username       string `json:"username"         validate:"max=150"`
}

// BotAuthResponse is a token pair together with the linked user.
type BotAuthResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    UserResponse `json:"user"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID       idgen.ID `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
}

// CategoryRequest is the body of category create, replace and patch calls.
type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

// CategoryResponse is the public view of a category.
type CategoryResponse struct {
	ID        idgen.ID  `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskRequest is the body of task create and replace calls.
type TaskRequest struct {
	Title       string            `json:"title"        validate:"required,max=200"`
	Description string            `json:"description"`
	Status      domain.TaskStatus `json:"status"       validate:"omitempty,oneof=todo in_progress done"`
	DueAt       *time.Time        `json:"due_at"`
	CategoryIDs []idgen.ID        `json:"category_ids"`
}

// TaskPatchRequest is a partial task update. Absent fields are left
// unchanged; an explicit null due_at clears the deadline.
type TaskPatchRequest struct {
	Title       *string            `json:"title"        validate:"omitempty,min=1,max=200"`
	Description *string            `json:"description"`
	Status      *domain.TaskStatus `json:"status"       validate:"omitempty,oneof=todo in_progress done"`
	DueAt       OptionalTime       `json:"due_at"`
	CategoryIDs *[]idgen.ID        `json:"category_ids"`
}

// OptionalTime records whether a JSON time field was present at all, so
// that null can be told apart from a missing key.
type OptionalTime struct {
	Set  bool
	Time *time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Time = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Time = &t
	return nil
}

// TaskResponse is the public view of a task. The notification handle is
// internal and never serialized.
type TaskResponse struct {
	ID          idgen.ID          `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      domain.TaskStatus `json:"status"`
	CategoryIDs []idgen.ID        `json:"category_ids"`
	CreatedAt   time.Time         `json:"created_at"`
	DueAt       *time.Time        `json:"due_at"`
}

// PageResponse is one page of a listing.
type PageResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Email: u.Email}
}

func categoryToResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
}

func taskToResponse(t *domain.Task) TaskResponse {
	ids := t.CategoryIDs
	if ids == nil {
		ids = []idgen.ID{}
	}
	var due *time.Time
	if t.DueAt != nil {
		d := t.DueAt.UTC()
		due = &d
	}
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		CategoryIDs: ids,
		CreatedAt:   t.CreatedAt.UTC(),
		DueAt:       due,
	}
}

func (req TaskRequest) toCreateInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueAt:       req.DueAt,
		CategoryIDs: req.CategoryIDs,
	}
}

// toReplaceInput sets every field, so omitted ones reset to their defaults.
func (req TaskRequest) toReplaceInput() service.UpdateTaskInput {
	status := req.Status
	if status == "" {
		status = domain.TaskStatusTodo
	}
	ids := req.CategoryIDs
	if ids == nil {
		ids = []idgen.ID{}
	}
	return service.UpdateTaskInput{
		Title:       &req.Title,
		Description: &req.Description,
		Status:      &status,
		DueAt:       req.DueAt,
		DueAtSet:    true,
		CategoryIDs: &ids,
	}
}

func (req TaskPatchRequest) toUpdateInput() service.UpdateTaskInput {
	return service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueAt:       req.DueAt.Time,
		DueAtSet:    req.DueAt.Set,
		CategoryIDs: req.CategoryIDs,
	}
}
