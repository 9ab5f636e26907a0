package models

import (
	"time"

	"github.com/google/uuid"
)

// Board is a discussion board addressable by its legacy directory key
type Board struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Thread is a topic on a board. ThreadKey is the Unix creation timestamp
// legacy clients use to address dat files.
type Thread struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"board_id"`
	ThreadKey int64     `json:"thread_key"`
	Title     string    `json:"title"`
	AuthorID  uuid.UUID `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is one post inside a thread
type Comment struct {
	ID        uuid.UUID `json:"id"`
	ThreadID  uuid.UUID `json:"thread_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Name      string    `json:"name"`
	Mail      string    `json:"mail"`
	DisplayID string    `json:"display_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
