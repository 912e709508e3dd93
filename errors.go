package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// NotFoundError reports a quiz, question, option or category id that does not exist.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// ValidationError carries field-level messages keyed by form field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

// Err returns nil when no field failed so callers can `return v.Err()`.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IntegrityError wraps a constraint violation reported by the store.
type IntegrityError struct {
	Err error
}

func (e *IntegrityError) Error() string { return "integrity error: " + e.Err.Error() }
func (e *IntegrityError) Unwrap() error { return e.Err }

func notFound(resource string, id uint) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// classifyDBError maps store errors onto NotFoundError / IntegrityError.
func classifyDBError(err error, resource string, id uint) error {
	if err == nil {
		return nil
	}
	var nf *NotFoundError
	var ve *ValidationError
	var ie *IntegrityError
	if errors.As(err, &nf) || errors.As(err, &ve) || errors.As(err, &ie) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound(resource, id)
	case errors.Is(err, gorm.ErrForeignKeyViolated), errors.Is(err, gorm.ErrDuplicatedKey):
		return &IntegrityError{Err: err}
	}
	// Not every driver implements gorm's error translation.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "constraint failed") || strings.Contains(msg, "foreign key") {
		return &IntegrityError{Err: err}
	}
	return err
}
