package credit

import (
	"strings"
	"time"
)

// Note is an append-only investigation note attached to a combo key.
type Note struct {
	ID        string
	ComboKey  string
	Author    string
	Text      string
	CreatedAt time.Time
}

// Valid reports whether the note has a combo key and some text.
func (n Note) Valid() bool {
	return strings.TrimSpace(n.ComboKey) != "" && strings.TrimSpace(n.Text) != ""
}
