package sqlproxy

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/imamik/daas/pkg/sqlapi"
)

// BindParameters converts wire parameters into driver arguments. Values
// arrive as decoded JSON: strings, json.Number or float64, bools and nil.
func BindParameters(params []sqlapi.Parameter) ([]any, error) {
	args := make([]any, 0, len(params))
	for _, p := range params {
		v, err := bindValue(p)
		if err != nil {
			return nil, fmt.Errorf("parameter @%s: %w", p.Name, err)
		}
		args = append(args, sql.Named(p.Name, v))
	}
	return args, nil
}

func bindValue(p sqlapi.Parameter) (any, error) {
	if p.Value == nil {
		return nil, nil
	}

	switch p.DataType {
	case sqlapi.NVarChar, sqlapi.NChar:
		s, err := asString(p)
		if err != nil {
			return nil, err
		}
		return s, nil
	case sqlapi.VarChar, sqlapi.Char:
		s, err := asString(p)
		if err != nil {
			return nil, err
		}
		return mssql.VarChar(s), nil
	case sqlapi.BigInt:
		return asInt(p.Value, math.MinInt64, math.MaxInt64)
	case sqlapi.Int:
		return asInt(p.Value, math.MinInt32, math.MaxInt32)
	case sqlapi.SmallInt:
		return asInt(p.Value, math.MinInt16, math.MaxInt16)
	case sqlapi.TinyInt:
		return asInt(p.Value, 0, math.MaxUint8)
	case sqlapi.Bit:
		switch v := p.Value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
		n, err := asInt(p.Value, 0, 1)
		if err != nil {
			return nil, err
		}
		return n == 1, nil
	case sqlapi.Float, sqlapi.Real:
		return asFloat(p.Value)
	case sqlapi.Decimal:
		switch v := p.Value.(type) {
		case json.Number:
			return v.String(), nil
		case string:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("invalid decimal %q", v)
			}
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	case sqlapi.DateTime2, sqlapi.DateTime, sqlapi.Date:
		s, ok := p.Value.(string)
		if !ok {
			break
		}
		t, err := parseTime(s)
		if err != nil {
			return nil, err
		}
		if p.DataType == sqlapi.DateTime {
			return mssql.DateTime1(t), nil
		}
		return t, nil
	case sqlapi.UniqueIdentifier:
		s, ok := p.Value.(string)
		if !ok {
			break
		}
		var id mssql.UniqueIdentifier
		if err := id.Scan(s); err != nil {
			return nil, fmt.Errorf("invalid uniqueidentifier %q: %w", s, err)
		}
		return id, nil
	case sqlapi.VarBinary:
		s, ok := p.Value.(string)
		if !ok {
			break
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("varbinary value is not base64: %w", err)
		}
		if p.Size > 0 && len(b) > p.Size {
			return nil, fmt.Errorf("value of %d bytes exceeds size %d", len(b), p.Size)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported data type %q", p.DataType)
	}
	return nil, fmt.Errorf("cannot bind %T as %s", p.Value, p.DataType)
}

func asString(p sqlapi.Parameter) (string, error) {
	var s string
	switch v := p.Value.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case bool:
		s = strconv.FormatBool(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "", fmt.Errorf("cannot bind %T as %s", p.Value, p.DataType)
	}
	if p.Size > 0 && utf8.RuneCountInString(s) > p.Size {
		return "", fmt.Errorf("value of %d characters exceeds size %d", utf8.RuneCountInString(s), p.Size)
	}
	return s, nil
}

func asInt(v any, lo, hi int64) (int64, error) {
	var n int64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", x.String())
		}
		n = i
	case float64:
		// 2^63 is exact in float64; anything at or past it would wrap on conversion.
		if x != math.Trunc(x) || x >= 0x1p63 || x < -0x1p63 {
			return 0, fmt.Errorf("invalid integer %v", x)
		}
		n = int64(x)
	case string:
		i, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", x)
		}
		n = i
	default:
		return 0, fmt.Errorf("cannot bind %T as integer", v)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
	}
	return n, nil
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("cannot bind %T as float", v)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date/time %q", s)
}
