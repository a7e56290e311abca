// Package csvfile imports collection requests from a CSV file with a header row.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"wasteroute/internal/integrations"
)

type Source struct {
	Path string
}

func (s Source) Name() string { return "csv-file" }

func (s Source) Fetch(ctx context.Context) (integrations.Batch, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return integrations.Batch{}, fmt.Errorf("csv-file: %w", err)
	}
	defer f.Close()
	return Read(ctx, f)
}

// Read parses requests from r.
func Read(ctx context.Context, r io.Reader) (integrations.Batch, error) {
	var b integrations.Batch
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	head, err := cr.Read()
	if err != nil {
		return b, fmt.Errorf("csv-file: read header: %w", err)
	}
	h := integrations.NewHeader(head)
	for row := 2; ; row++ {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return b, fmt.Errorf("csv-file: row %d: %w", row, err)
		}
		req, err := integrations.ParseRequest(h, rec)
		if err != nil {
			b.Rejected = append(b.Rejected, integrations.Rejection{Row: row, Reason: err.Error()})
			continue
		}
		b.Requests = append(b.Requests, req)
	}
	return b, nil
}
