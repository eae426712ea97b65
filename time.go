package bcf

import (
	"fmt"
	"time"
)

// Time exists to facilitate time parsing from the count index metadata,
// since SQLite drivers hand back unixtime integers, text, or time.Time
// depending on the driver and column type. Derived from
// https://github.com/mattn/go-sqlite3/issues/190#issuecomment-343341834f
type Time time.Time

func (t *Time) Scan(v interface{}) error {
	switch which := v.(type) {
	case int64:
		vt := time.Unix(which, 0)
		*t = Time(vt)
		return nil
	case int:
		vt := time.Unix(int64(which), 0)
		*t = Time(vt)
		return nil
	case time.Time:
		*t = Time(which)
		return nil
	case []byte:
		return t.parse(string(which))
	case string:
		return t.parse(which)
	}

	return fmt.Errorf("No appropriate type could be found to decode %v", v)
}

func (t *Time) parse(s string) error {
	// Should be more strictly to check this type.
	vt, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return err
	}
	*t = Time(vt)
	return nil
}

func (t Time) String() string {
	return time.Time(t).Format(time.RFC3339)
}
