package database

import (
	"strings"
	"testing"

	"github.com/vitalis-health/obesity-risk/pkg/common/config"
)

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{
		PostgresHost:     "db",
		PostgresPort:     "5433",
		PostgresUser:     "u",
		PostgresPassword: "p",
		PostgresDB:       "obesity",
		PostgresSSLMode:  "require",
	}
	dsn := PostgresDSN(cfg)
	for _, part := range []string{"host=db", "port=5433", "dbname=obesity", "sslmode=require"} {
		if !strings.Contains(dsn, part) {
			t.Fatalf("expected %q in %q", part, dsn)
		}
	}
}
