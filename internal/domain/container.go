package domain

// Container is a physical storage unit or an inventoried item. Hoards and
// items share one relational shape (both are nestable, taggable, and
// photographable), so the distinction is just the IsItem flag, which tells
// the UI whether to treat the node as expandable.
type Container struct {
	Syncable
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Code is a user-assigned scan string, distinct from the internal ID.
	// It is what gets printed on QR/DataMatrix labels, so it must be unique
	// within a user's dataset for scan-to-navigate to resolve unambiguously.
	Code     string `json:"code,omitempty"`
	IsItem   bool   `json:"is_item"`
	UserID   string `json:"user_id"`
	ParentID string `json:"parent_id,omitempty"` // empty = root level
}

// IsRoot returns true if the container sits at the top level of the tree.
func (c *Container) IsRoot() bool {
	return c.ParentID == ""
}
