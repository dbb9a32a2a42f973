package chat

import "time"

// Session identifies one widget conversation. The ID accompanies every
// backend request so the backend can scope its memory.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
