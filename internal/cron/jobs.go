package cron

import (
	"context"

	"gorm.io/gorm"
)

// txRunner is the transactional slice of the db client jobs depend on.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
