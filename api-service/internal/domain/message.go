package domain

import "time"

// Message is one stored chat message.
type Message struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	Content   string    `json:"content"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRequest is the query string of the history endpoint.
type HistoryRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HistoryResponse is one page of history, newest first.
type HistoryResponse struct {
	RoomID   string    `json:"room_id"`
	Messages []Message `json:"messages"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}
