package models

// Record represents one review row from the projected dataset.
type Record struct {
	ID        int64   `json:"id"`
	Text      string  `json:"description"`
	Rating    float64 `json:"rating"`
	X         float64 `json:"projection_x"`
	Y         float64 `json:"projection_y"`
	Neighbors []int64 `json:"neighbors,omitempty"`
}

// Selection is the subset of records matching the active predicate.
// Rows keep dataset order, so re-evaluating the same predicate against
// the same dataset yields an identical Selection.
type Selection struct {
	Predicate string   `json:"predicate"`
	Rows      []Record `json:"rows"`
}

// MeanRating returns the arithmetic mean rating over all rows.
// The second return value is false for an empty selection.
func (s *Selection) MeanRating() (float64, bool) {
	if len(s.Rows) == 0 {
		return 0, false
	}
	var sum float64
	for _, row := range s.Rows {
		sum += row.Rating
	}
	return sum / float64(len(s.Rows)), true
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in the conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SelectionRequest carries a predicate submitted by the view layer.
type SelectionRequest struct {
	Predicate string `json:"predicate" binding:"required"`
}

// ChatRequest is one user turn against the current selection.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
	Model   string `json:"model,omitempty"`
}
