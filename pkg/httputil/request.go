package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/appr/pkg/apperrors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate runs struct-tag validation and converts failures to a 422 error
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation: %w", err)
	}

	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		loc := []string{"body"}
		// Namespace is "Struct.field.sub"; drop the struct name
		parts := strings.Split(fe.Namespace(), ".")
		if len(parts) > 1 {
			loc = append(loc, parts[1:]...)
		}
		fields = append(fields, apperrors.FieldError{
			Loc:  loc,
			Msg:  fieldMessage(fe),
			Type: fe.Tag(),
		})
	}
	return apperrors.Validation(fields...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Field required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("String should have at least %s characters", fe.Param())
		}
		return fmt.Sprintf("Input should be greater than or equal to %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("String should have at most %s characters", fe.Param())
		}
		return fmt.Sprintf("Input should be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Input should be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return "value is not a valid email address"
	case "url", "http_url":
		return "Input should be a valid URL"
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}

// ParseJSON decodes the JSON body into dest and validates it
func ParseJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil {
		return decodeError(err)
	}
	return Validate(dest)
}

// ParseJSONNulls is ParseJSON for partial updates. It also returns the
// top-level keys the body set to an explicit null, which a pointer field in
// dest cannot tell apart from an absent key.
func ParseJSONNulls(r *http.Request, dest interface{}) ([]string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, decodeError(io.EOF)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return nil, decodeError(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(err)
	}
	var nulls []string
	for key, value := range raw {
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			nulls = append(nulls, key)
		}
	}
	sort.Strings(nulls)
	return nulls, Validate(dest)
}

func decodeError(err error) error {
	if errors.Is(err, io.EOF) {
		return apperrors.Validation(apperrors.FieldError{
			Loc: []string{"body"}, Msg: "Field required", Type: "missing",
		})
	}
	return apperrors.Validation(apperrors.FieldError{
		Loc: []string{"body"}, Msg: fmt.Sprintf("invalid JSON: %v", err), Type: "json_invalid",
	})
}

// ParsePathUUID extracts a UUID path parameter
func ParsePathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := mux.Vars(r)[key]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Validation(apperrors.FieldError{
			Loc:  []string{"path", key},
			Msg:  fmt.Sprintf("Input should be a valid UUID, got %q", raw),
			Type: "uuid_parsing",
		})
	}
	return id, nil
}

// ParseQueryUUID extracts an optional UUID query parameter
func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.Validation(apperrors.FieldError{
			Loc:  []string{"query", key},
			Msg:  fmt.Sprintf("Input should be a valid UUID, got %q", raw),
			Type: "uuid_parsing",
		})
	}
	return &id, nil
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, apperrors.Validation(apperrors.FieldError{
			Loc:  []string{"query", key},
			Msg:  "Input should be a valid integer",
			Type: "int_parsing",
		})
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// Pagination limits
const (
	DefaultPerPage = 20
	MaxPerPage     = 500
	MaxPage        = 1000000
)

// Pagination holds the common list query parameters
type Pagination struct {
	Page    int
	PerPage int
	Search  string
	Sort    string
	Order   string
}

// Offset returns the row offset for the page
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// ParsePagination reads page, per_page, search, sort and order
func ParsePagination(r *http.Request) (Pagination, error) {
	p := Pagination{
		Search: ParseQueryString(r, "search", ""),
		Sort:   ParseQueryString(r, "sort", ""),
		Order:  strings.ToLower(ParseQueryString(r, "order", "asc")),
	}

	var fields []apperrors.FieldError
	var err error
	if p.Page, err = ParseQueryInt(r, "page", 1); err != nil {
		return p, err
	}
	if p.PerPage, err = ParseQueryInt(r, "per_page", DefaultPerPage); err != nil {
		return p, err
	}

	if p.Page < 1 {
		fields = append(fields, apperrors.FieldError{
			Loc: []string{"query", "page"}, Msg: "Input should be greater than or equal to 1", Type: "greater_than_equal",
		})
	}
	// Keeps the row offset far from overflowing
	if p.Page > MaxPage {
		fields = append(fields, apperrors.FieldError{
			Loc:  []string{"query", "page"},
			Msg:  fmt.Sprintf("Input should be less than or equal to %d", MaxPage),
			Type: "less_than_equal",
		})
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		fields = append(fields, apperrors.FieldError{
			Loc:  []string{"query", "per_page"},
			Msg:  fmt.Sprintf("Input should be between 1 and %d", MaxPerPage),
			Type: "range",
		})
	}
	if p.Order != "asc" && p.Order != "desc" {
		fields = append(fields, apperrors.FieldError{
			Loc: []string{"query", "order"}, Msg: "Input should be 'asc' or 'desc'", Type: "literal_error",
		})
	}
	if len(fields) > 0 {
		return p, apperrors.Validation(fields...)
	}
	return p, nil
}
