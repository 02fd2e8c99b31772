package store

import "time"

// TunnelRecord is the persisted row for one tunnel. Secret material never
// lives in the database: current records point at a keystore entry holding
// the wg-quick text, while version 1 records still carry their original
// property list until migrated.
type TunnelRecord struct {
	ID         string `gorm:"primaryKey"`
	Name       string `gorm:"uniqueIndex;not null"`
	Version    int    `gorm:"not null"`
	SecretRef  string
	PublicKey  string
	LegacyData []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName pins the table name independent of gorm's pluralization.
func (TunnelRecord) TableName() string {
	return "tunnels"
}
