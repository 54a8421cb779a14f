package domain

// Message is one social-phase output row. Append-only.
// Corresponds to messages table in PostgreSQL.
type Message struct {
	ID            int64   // assigned by storage
	ParticipantID string  // author
	Text          string
	Sentiment     float64 // -1..1
	CreatedAt     int64   // Unix timestamp in milliseconds
}
