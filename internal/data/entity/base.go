package entity

import (
	"time"

	"github.com/google/uuid"
)

type BaseNoDelete struct {
	ID        uuid.UUID `db:"id"`
	TenantID  uuid.UUID `db:"tenant_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// BaseSimple is embedded by append-only rows.
type BaseSimple struct {
	ID        uuid.UUID `db:"id"`
	TenantID  uuid.UUID `db:"tenant_id"`
	CreatedAt time.Time `db:"created_at"`
}
