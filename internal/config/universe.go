package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"candlekeep/pkg/confkit"
)

// LoadUniverse merges inline symbols with the ticker-list file. Symbols are
// upper-cased and de-duplicated in first-seen order.
func LoadUniverse(baseDir string, u UniverseConf) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(raw string) {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" || strings.HasPrefix(sym, "#") {
			return
		}
		if _, ok := seen[sym]; ok {
			return
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	for _, s := range u.Symbols {
		add(s)
	}

	if file := strings.TrimSpace(u.File); file != "" {
		path := confkit.ResolvePath(baseDir, file)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open universe %s: %w", path, err)
		}
		defer f.Close()
		tickers, err := readTickers(f, u.Column)
		if err != nil {
			return nil, fmt.Errorf("config: read universe %s: %w", path, err)
		}
		for _, s := range tickers {
			add(s)
		}
	}

	if len(out) == 0 {
		return nil, errors.New("config: universe is empty")
	}
	return out, nil
}

// readTickers reads column from a CSV with a header row, falling back to the
// first column when the header does not name it.
func readTickers(r io.Reader, column string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), column) {
			idx = i
			break
		}
	}
	var out []string
	if idx < 0 {
		// No recognised header: the first row is data.
		idx = 0
		if len(header) > 0 {
			out = append(out, header[0])
		}
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if idx < len(rec) {
			out = append(out, rec[idx])
		}
	}
	return out, nil
}
