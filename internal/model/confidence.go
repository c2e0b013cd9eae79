package model

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
)

// Confidence is a fixed-point decimal in [0.0000, 1.0000], rounded to four
// fractional digits, matching the entities.confidence NUMERIC(5,4) column.
//
// No arbitrary-precision decimal library appears anywhere in the example pack, so
// rather than invent a dependency the value is kept as a float64 and only ever
// read/written rounded to four digits, with Scan/Value implementing the
// database/sql conversion the same way the teacher's raw database/sql code
// expects a driver.Valuer for anything non-trivial.
type Confidence float64

// NewConfidence clamps and rounds a raw detector confidence into range. NaN and
// out-of-range values substitute 0, per spec.
func NewConfidence(raw float32) Confidence {
	f := float64(raw)
	if math.IsNaN(f) || f < 0 || f > 1 {
		return 0
	}
	return Confidence(math.Round(f*10000) / 10000)
}

func (c Confidence) String() string {
	return strconv.FormatFloat(float64(c), 'f', 4, 64)
}

// Value implements driver.Valuer, encoding as the canonical 4-decimal string so the
// Postgres NUMERIC(5,4) column receives an exact value instead of a binary float.
func (c Confidence) Value() (driver.Value, error) {
	return c.String(), nil
}

// Scan implements sql.Scanner for reading the column back.
func (c *Confidence) Scan(src any) error {
	switch v := src.(type) {
	case float64:
		*c = NewConfidence(float32(v))
		return nil
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return fmt.Errorf("confidence: parse %q: %w", v, err)
		}
		*c = NewConfidence(float32(f))
		return nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("confidence: parse %q: %w", v, err)
		}
		*c = NewConfidence(float32(f))
		return nil
	case nil:
		*c = 0
		return nil
	default:
		return fmt.Errorf("confidence: unsupported scan type %T", src)
	}
}
