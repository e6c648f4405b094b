package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestFromDBNil(t *testing.T) {
	if FromDB(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestFromDBRecordNotFound(t *testing.T) {
	e := FromDB(gorm.ErrRecordNotFound)
	if e.Code != CodeNotFound {
		t.Fatalf("expected %s, got %s", CodeNotFound, e.Code)
	}
	if e.Status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", e.Status)
	}
}

func TestFromDBWrappedRecordNotFound(t *testing.T) {
	wrapped := fmt.Errorf("loading ceremony: %w", gorm.ErrRecordNotFound)
	if e := FromDB(wrapped); e.Code != CodeNotFound {
		t.Fatalf("expected %s, got %s", CodeNotFound, e.Code)
	}
}

func TestFromDBSchemaOutOfDate(t *testing.T) {
	for _, code := range []string{"22P02", "23514"} {
		pgErr := &pgconn.PgError{Code: code}
		e := FromDB(pgErr)
		if e.Code != CodeSchemaOutOfDate {
			t.Fatalf("pg code %s: expected %s, got %s", code, CodeSchemaOutOfDate, e.Code)
		}
		if e.Status != fiber.StatusConflict {
			t.Fatalf("pg code %s: expected 409, got %d", code, e.Status)
		}
	}
}

func TestFromDBUnknownIsInternal(t *testing.T) {
	e := FromDB(errors.New("connection reset"))
	if e.Code != CodeInternalError {
		t.Fatalf("expected %s, got %s", CodeInternalError, e.Code)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "idx_draft_request"}

	if !IsUniqueViolation(dup, "idx_draft_request") {
		t.Error("expected match on named constraint")
	}
	if !IsUniqueViolation(dup, "") {
		t.Error("expected match with empty constraint filter")
	}
	if IsUniqueViolation(dup, "idx_other") {
		t.Error("expected no match on different constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23514"}, "") {
		t.Error("check violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Error("plain error is not a unique violation")
	}
}

func TestValidationErrorDetails(t *testing.T) {
	e := ValidationError("bad input", "name", "year")
	if e.Code != CodeValidationFailed || e.Status != fiber.StatusBadRequest {
		t.Fatalf("unexpected error shape: %+v", e)
	}
	fields, ok := e.Details["fields"].([]string)
	if !ok || len(fields) != 2 {
		t.Fatalf("expected two field names, got %v", e.Details["fields"])
	}
}
