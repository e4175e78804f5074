// Package summary totals the amount column of a CSV document.
package summary

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-ingest/core"
)

const amountColumn = "amount"

type Result struct {
	TotalAmount int64 `json:"totalAmount"`
	RowCount    int   `json:"rowCount"`
}

// Summarize reads content as CSV with a header row. Every data record is
// counted, including unreadable ones; empty lines are not records. Only rows
// with a present, integer-parseable amount contribute to the total; the rest
// are logged at warn level and skipped. Header names are matched trimmed and
// case-insensitively, and the last matching column wins. Malformed rows never
// fail the summary.
func Summarize(ctx context.Context, content string, logger core.Logger) Result {
	result := Result{}
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return result
	}
	if err != nil {
		core.Log(ctx, logger, "warn", "summary: header row unreadable", map[string]any{"error": err.Error()})
		header = nil
	}
	amountIndex := -1
	for idx, name := range header {
		if strings.ToLower(strings.TrimSpace(name)) == amountColumn {
			amountIndex = idx
		}
	}

	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		result.RowCount++
		rowNumber := result.RowCount

		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				core.Log(ctx, logger, "warn", "summary: read aborted", map[string]any{
					"row":   rowNumber,
					"error": err.Error(),
				})
				break
			}
			core.Log(ctx, logger, "warn", "summary: row unreadable", map[string]any{
				"row":   rowNumber,
				"error": err.Error(),
			})
			continue
		}
		if amountIndex < 0 || amountIndex >= len(fields) {
			core.Log(ctx, logger, "warn", "summary: missing amount column", map[string]any{
				"row": rowNumber,
			})
			continue
		}
		raw := fields[amountIndex]
		amount, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			core.Log(ctx, logger, "warn", "summary: invalid amount value", map[string]any{
				"row":    rowNumber,
				"amount": raw,
			})
			continue
		}
		if overflows(result.TotalAmount, amount) {
			core.Log(ctx, logger, "warn", "summary: amount overflows total", map[string]any{
				"row":    rowNumber,
				"amount": raw,
			})
			continue
		}
		result.TotalAmount += amount
	}
	return result
}

func overflows(total, amount int64) bool {
	if amount > 0 {
		return total > math.MaxInt64-amount
	}
	return total < math.MinInt64-amount
}
