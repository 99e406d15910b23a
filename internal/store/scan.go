package store

import (
	"database/sql"
	"fmt"
	"time"
)

// tsLayout is fixed width so that text comparison in SQLite sorts
// chronologically.
const tsLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTS(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// tsValue scans a timestamp stored as TIMESTAMPTZ (Postgres) or TEXT (SQLite).
type tsValue struct {
	t     *time.Time
	valid bool
}

func scanTS(t *time.Time) *tsValue {
	return &tsValue{t: t}
}

func (v *tsValue) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		*v.t = time.Time{}
		v.valid = false
		return nil
	case time.Time:
		*v.t = x.UTC()
	case string:
		t, err := parseTS(x)
		if err != nil {
			return err
		}
		*v.t = t
	case []byte:
		t, err := parseTS(string(x))
		if err != nil {
			return err
		}
		*v.t = t
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
	v.valid = true
	return nil
}

func nullableTS(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTS(t)
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
