package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/stockroom/stockroom/internal/ledger"
	"github.com/stockroom/stockroom/internal/shared"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024

	// utf8BOM lets spreadsheet applications detect the encoding.
	utf8BOM = "\uFEFF"
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeRaw(text string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	_, err := s.buf.WriteString(text)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

// guardCell neutralises spreadsheet formula injection. Cells opening with a
// formula trigger are prefixed with a single quote, which spreadsheets render
// as literal text.
func guardCell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@':
		return "'" + v
	}
	return v
}

// WriteOverviewCSV streams the inventory overview as CSV. Pricing columns are
// present only for roles with pricing visibility. Rows follow the overview
// order: total quantity descending, name ascending on ties.
func WriteOverviewCSV(w io.Writer, groups []ledger.GroupedItem, role shared.Role) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeRaw(utf8BOM); err != nil {
		return err
	}

	header := []string{"Item Name", "Total Quantity"}
	if role.CanViewPricing() {
		header = append(header, "Total Value", "Average Price")
	}
	if err := streamer.writeRow(header); err != nil {
		return err
	}

	for _, g := range groups {
		row := []string{guardCell(g.Name), g.TotalQuantity.String()}
		if role.CanViewPricing() {
			row = append(row, g.TotalValue.StringFixed(2), g.AveragePrice().StringFixed(4))
		}
		if err := streamer.writeRow(row); err != nil {
			return err
		}
	}
	return streamer.Close()
}

// Filename builds the download name for an overview export. The role tag makes
// redacted exports distinguishable from full ones at a glance.
func Filename(role shared.Role, date string) string {
	return strings.Join([]string{"stock-report", role.Tag(), date}, "-") + ".csv"
}
