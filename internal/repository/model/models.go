package model

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Slug      string    `gorm:"size:16;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}
