package model

import "time"

// Rating is one user's 1..5 score for one document. At most one row exists
// per (document, user) pair; re-rating overwrites the value in place.
// Rating rows are the ground truth the document's cached triple derives from.
type Rating struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	Value      int       `json:"rating"`
	CreatedAt  time.Time `json:"created_at"`
}
