package directory

import (
	"context"

	"makosite/internal/models"
)

// Filter narrows a List call. A nil IsActive matches every link.
type Filter struct {
	IsActive *bool
}

// SortField orders a List call by one link field.
type SortField struct {
	Field string // "priority" or "createdAt"
	Desc  bool
}

// DirectorySort is the order every directory listing uses.
var DirectorySort = []SortField{
	{Field: "priority", Desc: true},
	{Field: "createdAt", Desc: true},
}

// Store is the remote collection holding the authoritative link records.
// Implementations classify failures with the apperr sentinels.
type Store interface {
	List(ctx context.Context, filter Filter, sort []SortField) ([]models.Link, error)
	Create(ctx context.Context, link models.Link) (*models.Link, error)
	Update(ctx context.Context, id string, patch models.LinkPatch) (*models.Link, error)
	Delete(ctx context.Context, id string) error
}

// ScopeFilter returns the filter for a caller: admins see every link,
// everyone else only active ones.
func ScopeFilter(admin bool) Filter {
	if admin {
		return Filter{}
	}
	active := true
	return Filter{IsActive: &active}
}
