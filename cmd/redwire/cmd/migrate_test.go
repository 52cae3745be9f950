package cmd

import (
	"testing"

	"go.uber.org/zap"

	"github.com/redwire/redwire/internal/config"
)

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	cfg = &config.Config{}
	log = zap.NewNop()

	err := migrateCmd.RunE(migrateCmd, nil)
	if err == nil {
		t.Fatal("expected an error when database_url is unset")
	}
}
