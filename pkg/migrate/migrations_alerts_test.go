package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pharmexa/pharmastock-backend/pkg/migrate"
)

func TestStockAlertsMigrationContainsDedupeIndex(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_stock_alerts.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no stock alerts migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE stock_alerts",
		"ux_stock_alerts_active_dedupe",
		"WHERE NOT is_resolved",
		"DROP TABLE IF EXISTS stock_alerts",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirectoryIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}
