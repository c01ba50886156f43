package database

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal is a wrapper for shopspring.Decimal with DB compatibility.
// NUMERIC columns come back from lib/pq as []byte.
type Decimal struct {
	decimal.Decimal
}

func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{Decimal: d}
}

// Value implements the driver.Valuer interface for database serialization.
func (d Decimal) Value() (driver.Value, error) {
	return d.Decimal.String(), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (d *Decimal) Scan(value interface{}) error {
	var (
		dec decimal.Decimal
		err error
	)

	switch v := value.(type) {
	case nil:
		dec = decimal.Zero
	case []byte:
		dec, err = decimal.NewFromString(string(v))
	case string:
		dec, err = decimal.NewFromString(v)
	case float64:
		dec = decimal.NewFromFloat(v)
	case int64:
		dec = decimal.NewFromInt(v)
	default:
		return fmt.Errorf("cannot scan %T into decimal", value)
	}
	if err != nil {
		return fmt.Errorf("cannot scan decimal %v: %w", value, err)
	}

	d.Decimal = dec
	return nil
}
