// internal/storage/models/base.go
package models

import "time"

// BaseModel содержит общие для записей журнала поля.
type BaseModel struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}
