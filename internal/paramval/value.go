// Package paramval implements typed task parameter values and their canonical
// string form.
//
// A parameter is persisted as a value type tag plus one canonical string. The
// canonical form is stable: parsing a canonical string and formatting it again
// yields the same string, so store-load-store round trips never drift.
package paramval

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// ValueType is the declared type of a parameter.
type ValueType string

const (
	TypeText     ValueType = "TEXT"
	TypeNumber   ValueType = "NUMBER"
	TypeDateTime ValueType = "DATETIME"
	// TypeBoolean is declared in profiles but persisted as NUMBER 1/0.
	TypeBoolean ValueType = "BOOLEAN"
)

// DateTimeLayout is the canonical DATETIME representation.
const DateTimeLayout = "2006-01-02T15:04:05.000Z"

// maxExponent bounds decimal exponents so hostile input cannot force huge allocations.
const maxExponent = 4096

var (
	// ErrInvalid reports a value that does not parse as its declared type.
	ErrInvalid = errors.New("invalid parameter value")
	// ErrUnknownType reports an unsupported value type name.
	ErrUnknownType = errors.New("unknown value type")
)

// ParseValueType resolves a type name from a profile document. STRING is
// accepted as an alias of TEXT. An empty name means TEXT.
func ParseValueType(name string) (ValueType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "TEXT", "STRING":
		return TypeText, nil
	case "NUMBER":
		return TypeNumber, nil
	case "DATETIME", "DATE":
		return TypeDateTime, nil
	case "BOOLEAN", "BOOL":
		return TypeBoolean, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
}

// Storage returns the type recorded next to persisted values.
func (t ValueType) Storage() ValueType {
	if t == TypeBoolean {
		return TypeNumber
	}
	return t
}

// Value is a parsed parameter value. Implementations are Text, Number and DateTime.
type Value interface {
	Type() ValueType
	// String returns the canonical representation.
	String() string
	sealed()
}

// Text is a verbatim string value.
type Text string

func (Text) Type() ValueType { return TypeText }

func (v Text) String() string { return string(v) }

func (Text) sealed() {}

// Number is an exact decimal: unscaled * 10^-scale, kept without trailing zeros.
type Number struct {
	unscaled *big.Int
	scale    int
}

func (Number) Type() ValueType { return TypeNumber }

func (Number) sealed() {}

// String renders the number in plain decimal notation.
func (v Number) String() string {
	if v.unscaled == nil || v.unscaled.Sign() == 0 {
		return "0"
	}
	digits := new(big.Int).Abs(v.unscaled).String()
	var out string
	switch {
	case v.scale <= 0:
		out = digits + strings.Repeat("0", -v.scale)
	case len(digits) > v.scale:
		out = digits[:len(digits)-v.scale] + "." + digits[len(digits)-v.scale:]
	default:
		out = "0." + strings.Repeat("0", v.scale-len(digits)) + digits
	}
	if v.unscaled.Sign() < 0 {
		return "-" + out
	}
	return out
}

// Int64 returns the integral value when the number has no fraction and fits.
func (v Number) Int64() (int64, bool) {
	if v.unscaled == nil {
		return 0, true
	}
	if v.scale > 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(v.String(), 10, 64)
	return n, err == nil
}

// Int returns a Number holding i.
func Int(i int64) Number {
	return normalize(big.NewInt(i), 0)
}

// Bool returns the NUMBER encoding of a boolean: 1 or 0.
func Bool(b bool) Number {
	if b {
		return Int(1)
	}
	return Int(0)
}

// DateTime is an instant with millisecond precision.
type DateTime struct {
	t time.Time
}

// At returns a DateTime for t truncated to milliseconds in UTC.
func At(t time.Time) DateTime {
	return DateTime{t: t.UTC().Truncate(time.Millisecond)}
}

func (DateTime) Type() ValueType { return TypeDateTime }

func (DateTime) sealed() {}

// Time returns the instant in UTC.
func (v DateTime) Time() time.Time { return v.t }

func (v DateTime) String() string { return v.t.Format(DateTimeLayout) }

// Parse converts raw into a typed value. An empty (or blank) raw value yields
// nil, meaning the parameter is unset.
func Parse(t ValueType, raw string) (Value, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	switch t {
	case TypeText, "":
		return Text(raw), nil
	case TypeNumber:
		return parseNumber(raw)
	case TypeBoolean:
		return parseBoolean(raw)
	case TypeDateTime:
		return parseDateTime(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
	}
}

// Canonicalize returns the canonical stored string for raw. The empty string
// means unset. Canonicalize is idempotent.
func Canonicalize(t ValueType, raw string) (string, error) {
	v, err := Parse(t, raw)
	if err != nil || v == nil {
		return "", err
	}
	return v.String(), nil
}

func parseBoolean(raw string) (Value, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "y", "on":
		return Bool(true), nil
	case "false", "0", "no", "n", "off":
		return Bool(false), nil
	}
	return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalid, raw)
}

func parseNumber(raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}

	invalid := fmt.Errorf("%w: %q is not a number", ErrInvalid, raw)
	i := 0
	negative := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		negative = s[i] == '-'
		i++
	}
	var mantissa strings.Builder
	digits, fraction := 0, 0
	seenPoint := false
scan:
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			mantissa.WriteByte(c)
			digits++
			if seenPoint {
				fraction++
			}
		case c == '.' && !seenPoint:
			seenPoint = true
		default:
			break scan
		}
	}
	if digits == 0 {
		return nil, invalid
	}
	exp := 0
	if i < len(s) {
		if s[i] != 'e' && s[i] != 'E' {
			return nil, invalid
		}
		parsed, err := strconv.Atoi(s[i+1:])
		if err != nil || parsed > maxExponent || parsed < -maxExponent {
			return nil, invalid
		}
		exp = parsed
	}

	unscaled, ok := new(big.Int).SetString(mantissa.String(), 10)
	if !ok {
		return nil, invalid
	}
	if negative {
		unscaled.Neg(unscaled)
	}
	return normalize(unscaled, fraction-exp), nil
}

func normalize(unscaled *big.Int, scale int) Number {
	if unscaled.Sign() == 0 {
		return Number{unscaled: new(big.Int), scale: 0}
	}
	ten := big.NewInt(10)
	q, r := new(big.Int), new(big.Int)
	for {
		q.QuoRem(unscaled, ten, r)
		if r.Sign() != 0 {
			break
		}
		unscaled = new(big.Int).Set(q)
		scale--
	}
	return Number{unscaled: unscaled, scale: scale}
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDateTime(raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	if isDigits(s) {
		millis, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a date-time", ErrInvalid, raw)
		}
		return inRange(At(time.UnixMilli(millis)), raw)
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return inRange(At(t), raw)
		}
	}
	return nil, fmt.Errorf("%w: %q is not a date-time", ErrInvalid, raw)
}

// inRange rejects instants whose UTC year needs more or fewer than four
// digits, since the canonical form could not be parsed back.
func inRange(v DateTime, raw string) (Value, error) {
	if y := v.t.Year(); y < 0 || y > 9999 {
		return nil, fmt.Errorf("%w: %q is outside years 0000-9999", ErrInvalid, raw)
	}
	return v, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
