package domain

// Thread is a chat thread summary owned by the upstream service.
// Nothing here is persisted locally.
type Thread struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Message is a single chat message within a thread.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
