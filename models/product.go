package models

import "time"

type Product struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Category  string    `gorm:"type:varchar(120)" json:"category"`
	Price     float64   `gorm:"type:numeric(10,2);not null" json:"price"`
	Reference string    `gorm:"type:varchar(120)" json:"reference"`
	Stock     int       `gorm:"not null;default:0" json:"stock"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReferenceOrID returns the catalog reference, falling back to the product id.
func (p *Product) ReferenceOrID() string {
	if p.Reference != "" {
		return p.Reference
	}
	return p.ID
}
