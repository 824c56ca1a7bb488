package relational

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// Drivers disagree on the Go types of aggregates: SUM of integers is a
// NUMERIC string on postgres, []byte on mysql and a *big.Int on duckdb.
// These scanners accept all of them.

type intCol int64

func (c *intCol) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = 0
	case int64:
		*c = intCol(v)
	case int32:
		*c = intCol(v)
	case float64:
		*c = intCol(v)
	case *big.Int:
		if !v.IsInt64() {
			return fmt.Errorf("integer %s out of range", v)
		}
		*c = intCol(v.Int64())
	case []byte:
		return c.parse(string(v))
	case string:
		return c.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into integer", src)
	}
	return nil
}

func (c *intCol) parse(s string) error {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*c = intCol(n)
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("cannot parse integer %q: %w", s, err)
	}
	*c = intCol(d.IntPart())
	return nil
}

type moneyCol struct {
	decimal.Decimal
}

func (c *moneyCol) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.Decimal = decimal.Zero
		return nil
	case *big.Int:
		c.Decimal = decimal.NewFromBigInt(v, 0)
		return nil
	default:
		return c.Decimal.Scan(src)
	}
}

// timeCol holds a raw timestamp for dialect.DecodeTime.
type timeCol struct {
	raw any
}

func (c *timeCol) Scan(src any) error {
	if b, ok := src.([]byte); ok {
		src = append([]byte(nil), b...)
	}
	c.raw = src
	return nil
}
