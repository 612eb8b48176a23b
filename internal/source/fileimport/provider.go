// Package fileimport turns user-uploaded CSV and XLSX files into canonical
// event tables under strict normalization. Unlike the live feed, import
// failures are surfaced: the user supplied the data and should be told what
// is wrong with it.
package fileimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/seismicguard/seismicguard/internal/domain"
	"github.com/seismicguard/seismicguard/internal/observability"
)

// Provider parses uploads into RawTables and runs strict normalization.
type Provider struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewProvider creates an import provider.
func NewProvider(logger *slog.Logger, metrics *observability.Metrics) *Provider {
	return &Provider{logger: logger, metrics: metrics}
}

// FromCSV reads a CSV upload (header row required) and normalizes it.
func (p *Provider) FromCSV(r io.Reader) (domain.EventTable, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		p.metrics.Imports.WithLabelValues("csv", "parse_error").Inc()
		return domain.EventTable{}, fmt.Errorf("read csv: %w", err)
	}
	return p.normalize("csv", rows)
}

// FromXLSX reads the first sheet of an XLSX upload and normalizes it.
func (p *Provider) FromXLSX(r io.Reader) (domain.EventTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		p.metrics.Imports.WithLabelValues("xlsx", "parse_error").Inc()
		return domain.EventTable{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		p.metrics.Imports.WithLabelValues("xlsx", "parse_error").Inc()
		return domain.EventTable{}, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		p.metrics.Imports.WithLabelValues("xlsx", "parse_error").Inc()
		return domain.EventTable{}, fmt.Errorf("read xlsx rows: %w", err)
	}
	return p.normalize("xlsx", rows)
}

// normalize converts header+data rows into a RawTable and applies the strict
// domain normalizer, recording the outcome.
func (p *Provider) normalize(format string, rows [][]string) (domain.EventTable, error) {
	raw := toRawTable(rows)

	table, err := domain.Normalize(raw)
	if err != nil {
		p.metrics.Imports.WithLabelValues(format, outcomeFor(err)).Inc()
		p.logger.Info("import rejected", "format", format, "error", err)
		return domain.EventTable{}, err
	}

	p.metrics.Imports.WithLabelValues(format, "success").Inc()
	return table, nil
}

// toRawTable maps rows[0] as header to columns of the remaining rows.
// Short data rows are padded with empty cells so the strict coercion step
// reports them as bad values rather than panicking on ragged input.
func toRawTable(rows [][]string) domain.RawTable {
	raw := domain.RawTable{Columns: map[string][]string{}}
	if len(rows) == 0 {
		return raw
	}
	header := rows[0]
	for col, name := range header {
		values := make([]string, 0, len(rows)-1)
		for _, row := range rows[1:] {
			if col < len(row) {
				values = append(values, row[col])
			} else {
				values = append(values, "")
			}
		}
		raw.Columns[name] = values
	}
	return raw
}

func outcomeFor(err error) string {
	var schemaErr *domain.SchemaError
	var coercionErr *domain.CoercionError
	switch {
	case errors.As(err, &schemaErr):
		return "schema_error"
	case errors.As(err, &coercionErr):
		return "coercion_error"
	default:
		return "parse_error"
	}
}
