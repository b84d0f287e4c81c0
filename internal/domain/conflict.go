package domain

// ConflictType says which kind of record an import conflict concerns.
type ConflictType string

const (
	ConflictDeck ConflictType = "deck"
	ConflictCard ConflictType = "card"
)

// Conflict is a user-facing record of how an import clash was resolved.
type Conflict struct {
	Type   ConflictType `json:"type"`
	Name   string       `json:"name"`
	Action string       `json:"action"`
}
