package data

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"unicode/utf8"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
)

type csvInput struct {
	Source      `param:",squash"`
	Delimiter   string   `param:"delimiter"`
	HasHeaders  *bool    `param:"has_headers"`
	Columns     []string `param:"columns"`
	FilterField string   `param:"filter_column"`
	FilterValue string   `param:"filter_value"`
	Limit       int      `param:"limit"`
}

// CSVResult is the output of csv_process. Rows are objects keyed by header
// when the input has a header row and plain string lists otherwise.
type CSVResult struct {
	Headers  []string `json:"headers,omitempty"`
	Rows     []any    `json:"rows"`
	RowCount int      `json:"row_count"`
}

// ProcessCSV parses CSV input, optionally filtering rows on one column's
// exact value and projecting a subset of columns.
func ProcessCSV(ctx context.Context, params map[string]any) (any, error) {
	var in csvInput
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	raw, err := in.read()
	if err != nil {
		return nil, err
	}

	comma, err := delimiter(in.Delimiter)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = comma
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	headers := in.HasHeaders == nil || *in.HasHeaders
	if !headers && (len(in.Columns) > 0 || in.FilterField != "") {
		return nil, errors.New("columns and filter_column require has_headers")
	}

	res := CSVResult{Rows: []any{}}
	var index map[string]int
	if headers {
		res.Headers, err = r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("csv input has no header row")
			}
			return nil, fmt.Errorf("failed to read csv header: %w", err)
		}
		index = make(map[string]int, len(res.Headers))
		for i, h := range res.Headers {
			index[h] = i
		}
		for _, c := range append(slices.Clone(in.Columns), in.FilterField) {
			if _, ok := index[c]; c != "" && !ok {
				return nil, fmt.Errorf("unknown csv column %q", c)
			}
		}
		if len(in.Columns) > 0 {
			res.Headers = in.Columns
		}
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}

		if !headers {
			res.Rows = append(res.Rows, record)
		} else {
			if in.FilterField != "" && field(record, index[in.FilterField]) != in.FilterValue {
				continue
			}
			row := make(map[string]string, len(res.Headers))
			for _, h := range res.Headers {
				row[h] = field(record, index[h])
			}
			res.Rows = append(res.Rows, row)
		}

		if in.Limit > 0 && len(res.Rows) >= in.Limit {
			break
		}
	}
	res.RowCount = len(res.Rows)

	ctxlog.FromContext(ctx).Debug("Processed CSV", "rows", res.RowCount, "headers", headers)
	return res, nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

func delimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == '"' || r == '\n' || r == '\r' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid csv delimiter %q", s)
	}
	return r, nil
}
