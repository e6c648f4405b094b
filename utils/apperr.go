package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Stable machine-readable error codes. Clients branch on Code, humans read
// Message. Conflict-class codes name the exact precondition that failed.
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeNotYourTurn          = "NOT_YOUR_TURN"
	CodeCeremonyNotDraft     = "CEREMONY_NOT_DRAFT"
	CodeCeremonyArchived     = "CEREMONY_ARCHIVED"
	CodeCeremonyNotPublished = "CEREMONY_NOT_PUBLISHED"
	CodeCeremonyNotLocked    = "CEREMONY_NOT_LOCKED"
	CodeCeremonyIncomplete   = "CEREMONY_INCOMPLETE"
	CodeDraftsLocked         = "DRAFTS_LOCKED"
	CodeCategoryHasNominees  = "CATEGORY_HAS_NOMINEES"
	CodeCeremonyHasNominees  = "CEREMONY_HAS_NOMINEES"
	CodeNoWinners            = "NO_WINNERS"
	CodeDraftNotActive       = "DRAFT_NOT_ACTIVE"
	CodeInvalidTransition    = "INVALID_STATUS_TRANSITION"
	CodeTMDBIDAlreadyLinked  = "TMDB_ID_ALREADY_LINKED"
	CodeSchemaOutOfDate      = "SCHEMA_OUT_OF_DATE"
	CodeInternalError        = "INTERNAL_ERROR"
)

// AppError is the typed error every engine function returns. Business-rule
// violations are built before any mutating statement runs; store errors get
// wrapped by FromDB.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Status  int                    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Code + ": " + e.Message
}

func NewError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func ValidationError(message string, fields ...string) *AppError {
	e := NewError(fiber.StatusBadRequest, CodeValidationFailed, message)
	if len(fields) > 0 {
		e.Details = map[string]interface{}{"fields": fields}
	}
	return e
}

func NotFoundError(what string) *AppError {
	return NewError(fiber.StatusNotFound, CodeNotFound, what+" not found")
}

func ConflictError(code, message string) *AppError {
	return NewError(fiber.StatusConflict, code, message)
}

func InternalError(message string) *AppError {
	return NewError(fiber.StatusInternalServerError, CodeInternalError, message)
}

// FromDB maps an unexpected store error onto the taxonomy. A Postgres
// rejection of a status value (invalid text representation or a check
// violation on a transition column) means the deployed schema predates the
// code writing it, so it is surfaced as SCHEMA_OUT_OF_DATE and operators
// know to run migrations instead of chasing a phantom bug.
func FromDB(err error) *AppError {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError("record")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02", "23514": // invalid_text_representation, check_violation
			return NewError(fiber.StatusConflict, CodeSchemaOutOfDate,
				"database rejected a status value — apply pending migrations")
		}
	}
	return InternalError("unexpected database error")
}

// IsUniqueViolation reports whether err is a Postgres duplicate-key error,
// optionally on a specific constraint. The pick arbiter uses it to turn a
// concurrent duplicate submission into an idempotent replay.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// Respond renders an AppError as the standard JSON error envelope.
func Respond(c *fiber.Ctx, e *AppError) error {
	body := fiber.Map{"error": e.Message, "code": e.Code}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return c.Status(e.Status).JSON(body)
}
