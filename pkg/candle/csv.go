package candle

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Columns is the persisted CSV header, in order.
var Columns = []string{"timestamp", "open", "high", "low", "close", "volume"}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Encode renders the series as CSV with RFC 3339 UTC timestamps. The output is
// a pure function of the input, so re-encoding the same series is byte stable.
func Encode(s Series) []byte {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, s)
	return buf.Bytes()
}

// WriteCSV streams the series to w.
func WriteCSV(w io.Writer, s Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	row := make([]string, len(Columns))
	for _, c := range s {
		row[0] = c.Timestamp.UTC().Format(time.RFC3339)
		row[1] = formatPrice(c.Open)
		row[2] = formatPrice(c.High)
		row[3] = formatPrice(c.Low)
		row[4] = formatPrice(c.Close)
		row[5] = strconv.FormatInt(c.Volume, 10)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatPrice(p float64) string {
	return decimal.NewFromFloat(p).String()
}

// Header inspects only the first line of a CSV blob.
func Header(data []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("candle: empty csv")
		}
		return nil, fmt.Errorf("candle: read header: %w", err)
	}
	return header, nil
}

// Decode parses a CSV blob into a canonical series. Rows that fail to parse or
// violate bar invariants are dropped and returned as RowErrors. A header
// without the required columns is a hard error wrapping ErrMissingColumns.
func Decode(data []byte) (Series, RowErrors, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Series{}, nil, fmt.Errorf("candle: empty csv")
		}
		return nil, nil, fmt.Errorf("candle: read header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows    Series
		dropped RowErrors
		line    = 1
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			dropped = append(dropped, RowError{Row: line, Reason: err.Error()})
			continue
		}
		c, err := parseRecord(rec, index)
		if err != nil {
			dropped = append(dropped, RowError{Row: line, Reason: err.Error()})
			continue
		}
		if err := c.Validate(); err != nil {
			dropped = append(dropped, RowError{Row: line, Timestamp: c.Timestamp, Reason: err.Error()})
			continue
		}
		rows = append(rows, c)
	}
	return canonicalize(rows), dropped, nil
}

// HasColumns reports whether header carries every persisted column.
func HasColumns(header []string) bool {
	_, err := columnIndex(header)
	return err == nil
}

func columnIndex(header []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name == "datetime" || name == "date" {
			name = "timestamp"
		}
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
	}
	index := make([]int, len(Columns))
	var missing []string
	for i, col := range Columns {
		p, ok := pos[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		index[i] = p
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ","))
	}
	return index, nil
}

func parseRecord(rec []string, index []int) (Candle, error) {
	field := func(i int) (string, error) {
		p := index[i]
		if p >= len(rec) {
			return "", fmt.Errorf("missing %s", Columns[i])
		}
		return strings.TrimSpace(rec[p]), nil
	}

	var c Candle
	raw, err := field(0)
	if err != nil {
		return c, err
	}
	ts, err := ParseTimestamp(raw, time.UTC)
	if err != nil {
		return c, err
	}
	c.Timestamp = FloorMinute(ts)

	prices := []*float64{&c.Open, &c.High, &c.Low, &c.Close}
	for i, dst := range prices {
		raw, err := field(i + 1)
		if err != nil {
			return c, err
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return c, fmt.Errorf("invalid %s %q", Columns[i+1], raw)
		}
		*dst, _ = d.Float64()
	}

	raw, err = field(5)
	if err != nil {
		return c, err
	}
	vol, err := ParseVolume(raw)
	if err != nil {
		return c, err
	}
	c.Volume = vol
	return c, nil
}

// ParseTimestamp accepts RFC 3339 and the naive layouts legacy files used.
// Naive timestamps are interpreted in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

// ParseVolume accepts integer or decimal volume strings; "N/A" and empty are
// reported as zero.
func ParseVolume(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "n/a") {
		return 0, nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid volume %q", raw)
	}
	return d.IntPart(), nil
}
