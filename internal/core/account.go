package core

import "time"

// Profile is the user's public profile as stored by the backend.
type Profile struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// Settings holds per-user preferences kept server-side.
type Settings struct {
	Currency      string `json:"currency"`
	Language      string `json:"language,omitempty"`
	Notifications bool   `json:"notifications"`
	MonthlyReport bool   `json:"monthlyReport"`
}

// Post is a community forum entry.
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	Comments  []Comment `json:"comments,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
