// ABOUTME: Request and response payloads for the todo and milestone routes
// ABOUTME: Requests are typed apart from records so absent fields reset to defaults

package server

import (
	"time"

	"github.com/2389/airway-api/internal/store"
)

// TodoRequest is the JSON body for POST/PUT /todos. Fields absent from the
// body take their zero value; id and created_at are ignored if sent.
type TodoRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
}

// Fields converts the request into the stored field set.
func (r TodoRequest) Fields() store.TodoFields {
	return store.TodoFields{
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
	}
}

// MilestoneRequest is the JSON body for POST/PUT /timeline/milestones.
type MilestoneRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	DueDate     store.Date `json:"due_date"`
}

// Fields converts the request into the stored field set.
func (r MilestoneRequest) Fields() store.MilestoneFields {
	return store.MilestoneFields{
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		DueDate:     r.DueDate,
	}
}

// TodoResponse is the JSON representation of a stored todo.
type TodoResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

func todoResponse(rec *store.Todo) TodoResponse {
	return TodoResponse{
		ID:          rec.ID,
		Title:       rec.Fields.Title,
		Description: rec.Fields.Description,
		Completed:   rec.Fields.Completed,
		CreatedAt:   rec.CreatedAt,
	}
}

// MilestoneResponse is the JSON representation of a stored milestone.
type MilestoneResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	DueDate     store.Date `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
}

func milestoneResponse(rec *store.Milestone) MilestoneResponse {
	return MilestoneResponse{
		ID:          rec.ID,
		Title:       rec.Fields.Title,
		Description: rec.Fields.Description,
		Completed:   rec.Fields.Completed,
		DueDate:     rec.Fields.DueDate,
		CreatedAt:   rec.CreatedAt,
	}
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// RootResponse is the body of GET /.
type RootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the body of GET /health/ready.
type ReadyResponse struct {
	Status     string `json:"status"`
	Todos      int    `json:"todos"`
	Milestones int    `json:"milestones"`
}

// DatetimeResponse is the body of GET /datetime.
type DatetimeResponse struct {
	Datetime string `json:"datetime"`
	Timezone string `json:"timezone"`
}
