package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/parquet-go/parquet-go"

	"livechart/internal/types"
)

// Row is the exported form of one bar.
type Row struct {
	Timestamp int64   `json:"t" parquet:"t" csv:"t"`
	Time      string  `json:"time" parquet:"time" csv:"time"`
	Close     float64 `json:"c" parquet:"c" csv:"c"`
	Side      string  `json:"side,omitempty" parquet:"side,optional" csv:"side"`
}

// RowsFromBars converts bars, marking bars an annotation was aligned to.
func RowsFromBars(bars []types.Bar, marks []types.AnnotationPoint) []Row {
	sides := make(map[int64]string, len(marks))
	for _, m := range marks {
		sides[m.Time.UnixMilli()] = string(m.Side)
	}
	rows := make([]Row, len(bars))
	for i, b := range bars {
		ms := b.Time.UnixMilli()
		rows[i] = Row{
			Timestamp: ms,
			Time:      b.Time.UTC().Format("2006-01-02T15:04:05Z"),
			Close:     b.Close.InexactFloat64(),
			Side:      sides[ms],
		}
	}
	return rows
}

// Saver writes a series in one format.
type Saver interface {
	Write(w io.Writer, rows []Row) error
	Extension() string
	ContentType() string
}

// NewSaver returns the saver for csv, parquet or json, or nil.
func NewSaver(format string) Saver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "parquet":
		return ParquetSaver{}
	case "json":
		return JSONSaver{}
	default:
		return nil
	}
}

// SaveFile writes rows to path with s.
func SaveFile(s Saver, rows []Row, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := s.Write(f, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

type CSVSaver struct{}

func (CSVSaver) Extension() string   { return "csv" }
func (CSVSaver) ContentType() string { return "text/csv" }

func (CSVSaver) Write(w io.Writer, rows []Row) error {
	return gocsv.Marshal(rows, w)
}

type JSONSaver struct{}

func (JSONSaver) Extension() string   { return "json" }
func (JSONSaver) ContentType() string { return "application/json" }

func (JSONSaver) Write(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

type ParquetSaver struct{}

func (ParquetSaver) Extension() string   { return "parquet" }
func (ParquetSaver) ContentType() string { return "application/vnd.apache.parquet" }

func (ParquetSaver) Write(w io.Writer, rows []Row) error {
	return parquet.Write(w, rows)
}

// FileSafe turns an instrument into a file name component: "BTC/USDT" -> "BTCUSDT".
func FileSafe(instrument string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return -1
		}
		return r
	}, instrument)
}
