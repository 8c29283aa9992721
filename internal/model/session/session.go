package session

import "time"

// Session captures one connected companion page.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
	Messages    int       `json:"messages"`
}
