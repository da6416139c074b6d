// Package http exposes the accounting book over a JSON bridge.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies are decoded into DTOs checked with struct tags; query strings and
// path parameters go through a small accumulating parser.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"hisab/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 8 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON reads the request body into dst and validates it. Every
// failure wraps core.ErrValidation.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", core.ErrValidation)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body exceeds %d bytes", core.ErrValidation, tooLarge.Limit)
		}
		return fmt.Errorf("%w: malformed JSON: %v", core.ErrValidation, err)
	}
	return ValidateStruct(dst)
}

// ValidateStruct runs the validator tags of v and flattens the result into
// one message.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", core.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", field, fe.Param())
	case "email":
		return field + " must be an email address"
	case "datetime":
		return field + " must be a YYYY-MM-DD date"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// QueryParser reads typed query parameters and collects every problem so
// that a request reports all bad parameters at once.
type QueryParser struct {
	values url.Values
	errs   []string
}

func NewQueryParser(r *http.Request) *QueryParser {
	return &QueryParser{values: r.URL.Query()}
}

// String returns the sanitized value of key.
func (q *QueryParser) String(key string) string {
	return sanitizeInput(q.values.Get(key))
}

// Date parses key as YYYY-MM-DD. A missing key yields the zero date.
func (q *QueryParser) Date(key string) core.Date {
	v := q.String(key)
	if v == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(v)
	if err != nil {
		q.errs = append(q.errs, fmt.Sprintf("%s must be a YYYY-MM-DD date", key))
	}
	return d
}

// Int parses key as a non-negative integer, def when missing.
func (q *QueryParser) Int(key string, def int) int {
	v := q.String(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		q.errs = append(q.errs, fmt.Sprintf("%s must be a non-negative integer", key))
		return def
	}
	return i
}

// Int64 parses key as a positive ID, 0 when missing.
func (q *QueryParser) Int64(key string) int64 {
	v := q.String(key)
	if v == "" {
		return 0
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil || i <= 0 {
		q.errs = append(q.errs, fmt.Sprintf("%s must be a positive integer", key))
		return 0
	}
	return i
}

// Bool treats "1", "true" and "yes" as true.
func (q *QueryParser) Bool(key string) bool {
	switch strings.ToLower(q.String(key)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// Kind parses key as a party kind. Empty is allowed.
func (q *QueryParser) Kind(key string) core.PartyKind {
	k := core.PartyKind(strings.ToLower(q.String(key)))
	if k != "" && !k.Valid() {
		q.errs = append(q.errs, fmt.Sprintf("%s must be customer or supplier", key))
		return ""
	}
	return k
}

// Types parses a comma-separated list of transaction types.
func (q *QueryParser) Types(key string) []core.TransactionType {
	v := q.String(key)
	if v == "" {
		return nil
	}
	var out []core.TransactionType
	for _, part := range strings.Split(v, ",") {
		t := core.TransactionType(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !t.Valid() {
			q.errs = append(q.errs, fmt.Sprintf("unknown transaction type %q", t))
			continue
		}
		out = append(out, t)
	}
	return out
}

// Err reports the collected problems as one validation error.
func (q *QueryParser) Err() error {
	if len(q.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", core.ErrValidation, strings.Join(q.errs, "; "))
}

// pathID reads a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	v := chi.URLParam(r, name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", core.ErrValidation, name, v)
	}
	return id, nil
}

// pathKind reads the {kind} path parameter. Plural forms are accepted.
func pathKind(r *http.Request) (core.PartyKind, error) {
	v := strings.TrimSuffix(strings.ToLower(chi.URLParam(r, "kind")), "s")
	k := core.PartyKind(v)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidKind, chi.URLParam(r, "kind"))
	}
	return k, nil
}
