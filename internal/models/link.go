package models

import "time"

// Link types accepted by the directory.
const (
	LinkTypeGoFundMe = "gofundme"
	LinkTypeCrypto   = "crypto"
	LinkTypeSocial   = "social"
	LinkTypeWebsite  = "website"
	LinkTypeOther    = "other"
)

// Priority bounds and the value used when a new link omits one.
const (
	MinPriority     = 0
	MaxPriority     = 100
	DefaultPriority = 50
)

// LinkTypes lists every valid link type in display order.
var LinkTypes = []string{LinkTypeGoFundMe, LinkTypeCrypto, LinkTypeSocial, LinkTypeWebsite, LinkTypeOther}

// Link is an outbound link shown in the site's directory.
type Link struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	IsActive    bool      `json:"isActive"`
	Priority    int       `json:"priority"`
	Creator     string    `json:"creator"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LinkInput carries the admin-editable fields of a new link.
type LinkInput struct {
	Title       string `json:"title" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
	Type        string `json:"type" validate:"required,oneof=gofundme crypto social website other"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	IsActive    *bool  `json:"isActive,omitempty"`
	Priority    *int   `json:"priority,omitempty" validate:"omitempty,min=0,max=100"`
}

// LinkPatch is a partial update. Nil fields are left untouched by the store.
type LinkPatch struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1"`
	URL         *string    `json:"url,omitempty" validate:"omitempty,url"`
	Type        *string    `json:"type,omitempty" validate:"omitempty,oneof=gofundme crypto social website other"`
	Description *string    `json:"description,omitempty"`
	Icon        *string    `json:"icon,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
	Priority    *int       `json:"priority,omitempty" validate:"omitempty,min=0,max=100"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// IsValidLinkType reports whether t is one of LinkTypes.
func IsValidLinkType(t string) bool {
	for _, lt := range LinkTypes {
		if lt == t {
			return true
		}
	}
	return false
}

// Less reports whether a sorts before b in the directory:
// higher priority first, then most recently created first.
func (a Link) Less(b Link) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.CreatedAt.After(b.CreatedAt)
}
