package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgCodeUnwraps(t *testing.T) {
	base := &pgconn.PgError{Code: CodeExclusionViolation}
	err := fmt.Errorf("insert appointment: %w", base)
	if !IsExclusionViolation(err) {
		t.Fatalf("expected wrapped exclusion violation to be detected")
	}
	if IsUniqueViolation(err) {
		t.Fatalf("exclusion violation must not look like a unique violation")
	}
	if PgCode(errors.New("plain")) != "" {
		t.Fatalf("expected empty code for non-postgres error")
	}
}

func TestReadyCheckWithoutPool(t *testing.T) {
	if err := ReadyCheck(nil)(context.Background()); err == nil {
		t.Fatalf("expected error when pool is not configured")
	}
}
