package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestNormalizeDSN(t *testing.T) {
	cfg, err := NormalizeDSN("app:secret@tcp(db:3306)/shop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.ParseTime || cfg.Loc != time.UTC {
		t.Fatalf("parseTime/loc not forced: %+v", cfg)
	}
	if cfg.Params["charset"] != "utf8mb4" {
		t.Fatalf("charset default missing: %v", cfg.Params)
	}
	if cfg.DBName != "shop" || cfg.Addr != "db:3306" {
		t.Fatalf("unexpected parse: %s %s", cfg.DBName, cfg.Addr)
	}
}

func TestNormalizeDSNInvalid(t *testing.T) {
	if _, err := NormalizeDSN("not a dsn"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestIsDuplicateKey(t *testing.T) {
	dup := fmt.Errorf("insert order: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	if !IsDuplicateKey(dup) {
		t.Fatalf("expected duplicate key")
	}
	if IsDuplicateKey(&mysql.MySQLError{Number: 1452}) {
		t.Fatalf("foreign key error is not a duplicate")
	}
	if IsDuplicateKey(nil) {
		t.Fatalf("nil is not a duplicate")
	}
}
