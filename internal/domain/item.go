package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a catalog entry. ID is assigned by the document index on first
// insert and never changes afterwards.
type Item struct {
	ID          string          `json:"id"`
	Name        string          `json:"name" validate:"required,notblank,min=2,max=100"`
	Description string          `json:"description" validate:"required,notblank,min=10,max=1000"`
	Category    string          `json:"category" validate:"required,notblank,min=2,max=50"`
	Price       decimal.Decimal `json:"price" validate:"dgte=0.01,dlte=999999.99,dscale=2"`
	Stock       int             `json:"stock" validate:"gte=0,lte=999999"`
	Tags        []string        `json:"tags" validate:"dive,min=1,max=20"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NormalizeTags replaces a nil tag list with an empty one so that stored and
// returned records always carry a JSON array.
func (i *Item) NormalizeTags() {
	if i.Tags == nil {
		i.Tags = []string{}
	}
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	if i.Tags != nil {
		out.Tags = append([]string(nil), i.Tags...)
	}
	return out
}

// HasTag reports whether tag is one of the item's tags.
func (i *Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
