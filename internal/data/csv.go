// Package data loads and writes OHLCV bar files.
package data

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// timestampLayouts are tried in order when parsing the date column.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02-Jan-2006",
	"01/02/2006",
}

// headerAliases maps accepted column names to the canonical ones.
var headerAliases = map[string]string{
	"date":      "date",
	"timestamp": "date",
	"datetime":  "date",
	"open":      "open",
	"o":         "open",
	"high":      "high",
	"h":         "high",
	"low":       "low",
	"l":         "low",
	"close":     "close",
	"c":         "close",
	"adjclose":  "adj_close",
	"volume":    "volume",
	"vol":       "volume",
	"v":         "volume",
}

var requiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

// csvTime parses the date column with any of the accepted layouts.
type csvTime struct {
	t time.Time
}

func (t *csvTime) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.t = time.Unix(secs, 0).UTC()
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			t.t = ts.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t csvTime) MarshalCSV() (string, error) {
	if t.t.Hour() == 0 && t.t.Minute() == 0 && t.t.Second() == 0 {
		return t.t.Format("2006-01-02"), nil
	}
	return t.t.Format(time.RFC3339), nil
}

// csvFloat is a price or volume cell. Empty, "null" and "nan" cells decode to
// NaN so that incomplete bars are rejected downstream rather than read as 0.
type csvFloat float64

func (f *csvFloat) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	switch strings.ToLower(s) {
	case "", "null", "nan", "-":
		*f = csvFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = csvFloat(v)
	return nil
}

func (f csvFloat) MarshalCSV() (string, error) {
	return strconv.FormatFloat(float64(f), 'f', -1, 64), nil
}

// barRow is one CSV row.
type barRow struct {
	Date   csvTime  `csv:"date"`
	Open   csvFloat `csv:"open"`
	High   csvFloat `csv:"high"`
	Low    csvFloat `csv:"low"`
	Close  csvFloat `csv:"close"`
	Volume csvFloat `csv:"volume"`
}

// ReadCSV decodes bars from r. Headers are matched case-insensitively with
// common aliases such as timestamp and vol. Rows are returned sorted by time with
// duplicate timestamps collapsed to the last occurrence.
func ReadCSV(r io.Reader) ([]models.Candle, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	normalized, err := normalizeHeader(raw)
	if err != nil {
		return nil, err
	}

	var rows []*barRow
	if err := gocsv.UnmarshalBytes(normalized, &rows); err != nil {
		return nil, errors.Wrap(err, "decoding csv")
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candles = append(candles, models.Candle{
			Timestamp: row.Date.t,
			Open:      float64(row.Open),
			High:      float64(row.High),
			Low:       float64(row.Low),
			Close:     float64(row.Close),
			Volume:    float64(row.Volume),
		})
	}
	return sortAndDedupe(candles), nil
}

// LoadFile reads bars from a CSV file.
func LoadFile(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataError("csv", SymbolFromPath(path), "opening file", err)
	}
	defer f.Close()

	candles, err := ReadCSV(f)
	if err != nil {
		return nil, errors.NewDataError("csv", SymbolFromPath(path), path, err)
	}
	return candles, nil
}

// WriteCSV encodes bars with the canonical header.
func WriteCSV(w io.Writer, candles []models.Candle) error {
	rows := make([]*barRow, len(candles))
	for i, c := range candles {
		rows[i] = &barRow{
			Date:   csvTime{c.Timestamp},
			Open:   csvFloat(c.Open),
			High:   csvFloat(c.High),
			Low:    csvFloat(c.Low),
			Close:  csvFloat(c.Close),
			Volume: csvFloat(c.Volume),
		}
	}
	return gocsv.Marshal(rows, w)
}

// SymbolFromPath derives a symbol from a file name: "data/aapl.csv" -> "AAPL".
func SymbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

// normalizeHeader rewrites the first line to canonical column names and
// checks that every required column is present.
func normalizeHeader(raw []byte) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	reader := bufio.NewReader(bytes.NewReader(raw))
	header, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "reading csv header")
	}
	rest := raw[len(header):]

	fields := strings.Split(strings.TrimRight(header, "\r\n"), ",")
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		key := strings.ToLower(strings.Trim(strings.TrimSpace(f), `"`))
		key = strings.NewReplacer(" ", "", "_", "").Replace(key)
		if canonical, ok := headerAliases[key]; ok {
			fields[i] = canonical
			seen[canonical] = true
		} else {
			fields[i] = key
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(errors.ErrMissingColumns, "csv lacks %s", strings.Join(missing, ", "))
	}

	var out bytes.Buffer
	out.WriteString(strings.Join(fields, ","))
	out.WriteByte('\n')
	out.Write(rest)
	return out.Bytes(), nil
}

func sortAndDedupe(candles []models.Candle) []models.Candle {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	out := candles[:0]
	for _, c := range candles {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(c.Timestamp) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}
