package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ColumnType is the declared type of a table column. Cell edits are coerced
// against the column type before they reach the cache or the store.
type ColumnType string

// Supported column types.
const (
	TypeText     ColumnType = "text"
	TypeInt      ColumnType = "int"
	TypeFloat    ColumnType = "float"
	TypeBool     ColumnType = "bool"
	TypeDate     ColumnType = "date"
	TypeDateTime ColumnType = "datetime"
)

// Column describes one column of a tabular snapshot.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the ordered column list of a tabular snapshot.
type Schema []Column

// Column returns the column with the given name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Value coercion errors.
var (
	ErrTypeMismatch      = errors.New("value does not match column type")
	ErrUnknownColumnType = errors.New("unknown column type")
)

// IsValidColumnType reports whether ct is one of the supported column types.
func IsValidColumnType(ct ColumnType) bool {
	switch ct {
	case TypeText, TypeInt, TypeFloat, TypeBool, TypeDate, TypeDateTime:
		return true
	}
	return false
}

// Accepted layouts for date and datetime coercion, tried in order.
var (
	dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "2006-01-02 15:04", time.RFC3339}
)

// Coerce converts val to the Go representation of the column type: string,
// int64, float64, bool, or time.Time. A nil value or a blank string always
// coerces to nil regardless of column type. On failure it returns an error
// wrapping ErrTypeMismatch and leaves nothing mutated.
func Coerce(val any, ct ColumnType) (any, error) {
	if val == nil {
		return nil, nil
	}
	if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}

	switch ct {
	case TypeText:
		return coerceText(val)
	case TypeInt:
		return coerceInt(val)
	case TypeFloat:
		return coerceFloat(val)
	case TypeBool:
		return coerceBool(val)
	case TypeDate, TypeDateTime:
		return coerceTime(val, ct)
	}
	return nil, fmt.Errorf("column type %q: %w", ct, ErrUnknownColumnType)
}

func coerceText(val any) (any, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int, int64, float64, bool:
		return fmt.Sprint(v), nil
	case time.Time:
		return v.Format("2006-01-02"), nil
	}
	return nil, fmt.Errorf("%T is not text: %w", val, ErrTypeMismatch)
}

func coerceInt(val any) (any, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		// Grid editors hand back formatted numbers; strip the commas.
		n, err := strconv.ParseInt(strings.ReplaceAll(v, ",", ""), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer: %w", v, ErrTypeMismatch)
		}
		return n, nil
	}
	return nil, fmt.Errorf("%T is not an integer: %w", val, ErrTypeMismatch)
}

func coerceFloat(val any) (any, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number: %w", v, ErrTypeMismatch)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%T is not a number: %w", val, ErrTypeMismatch)
}

func coerceBool(val any) (any, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "y", "x":
			return true, nil
		case "false", "0", "no", "n":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean: %w", v, ErrTypeMismatch)
	}
	return nil, fmt.Errorf("%T is not a boolean: %w", val, ErrTypeMismatch)
}

func coerceTime(val any, ct ColumnType) (any, error) {
	switch v := val.(type) {
	case time.Time:
		if ct == TypeDate {
			return v.Truncate(24 * time.Hour), nil
		}
		return v, nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%q is not a date: %w", v, ErrTypeMismatch)
	}
	return nil, fmt.Errorf("%T is not a date: %w", val, ErrTypeMismatch)
}
