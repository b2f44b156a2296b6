package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolationPgx(t *testing.T) {
	err := fmt.Errorf("insert stock alert: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "ux_stock_alerts_active_dedupe",
	})

	assert.True(t, IsUniqueViolation(err, "ux_stock_alerts_active_dedupe"))
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(err, "ux_some_other_constraint"))
}

func TestIsUniqueViolationPq(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "ux_stock_alerts_active_dedupe"}

	assert.True(t, IsUniqueViolation(err, "ux_stock_alerts_active_dedupe"))
	assert.False(t, IsUniqueViolation(err, "ux_some_other_constraint"))
}

func TestIsUniqueViolationIgnoresOtherSQLStates(t *testing.T) {
	// foreign_key_violation mentioning a constraint must not count as a dupe
	err := &pgconn.PgError{Code: "23503", ConstraintName: "ux_stock_alerts_active_dedupe"}

	assert.False(t, IsUniqueViolation(err, "ux_stock_alerts_active_dedupe"))
	assert.False(t, IsUniqueViolation(err, ""))
}

func TestIsUniqueViolationUntypedFallback(t *testing.T) {
	assert.True(t, IsUniqueViolation(errors.New(`UNIQUE constraint failed: stock_alerts.medication_id`), ""))
	assert.True(t, IsUniqueViolation(errors.New(`duplicate key value violates unique constraint "ux_stock_alerts_active_dedupe"`), "ux_stock_alerts_active_dedupe"))
	assert.False(t, IsUniqueViolation(errors.New("connection refused"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}
