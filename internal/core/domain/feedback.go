package domain

import "time"

// Feedback is a user rating for one answered question.
type Feedback struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Source    string    `json:"source,omitempty"`
	Answer    string    `json:"answer"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
