// Package xlsxfile imports requests and agents from an Excel workbook. The
// "requests" sheet (or the first sheet) holds requests; an optional "agents"
// sheet holds collectors.
package xlsxfile

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"wasteroute/internal/integrations"
)

const (
	RequestsSheet = "requests"
	AgentsSheet   = "agents"
)

type Source struct {
	Path string
}

func (s Source) Name() string { return "xlsx-file" }

func (s Source) Fetch(ctx context.Context) (integrations.Batch, error) {
	var b integrations.Batch
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return b, fmt.Errorf("xlsx-file: open: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return b, fmt.Errorf("xlsx-file: workbook has no sheets")
	}
	reqSheet := sheets[0]
	hasAgents := false
	for _, name := range sheets {
		switch name {
		case RequestsSheet:
			reqSheet = name
		case AgentsSheet:
			hasAgents = true
		}
	}

	rows, err := f.GetRows(reqSheet)
	if err != nil {
		return b, fmt.Errorf("xlsx-file: read %s: %w", reqSheet, err)
	}
	if len(rows) > 0 {
		h := integrations.NewHeader(rows[0])
		for i, row := range rows[1:] {
			if err := ctx.Err(); err != nil {
				return b, err
			}
			req, err := integrations.ParseRequest(h, row)
			if err != nil {
				b.Rejected = append(b.Rejected, integrations.Rejection{Row: i + 2, Reason: err.Error()})
				continue
			}
			b.Requests = append(b.Requests, req)
		}
	}

	if !hasAgents || reqSheet == AgentsSheet {
		return b, nil
	}
	rows, err = f.GetRows(AgentsSheet)
	if err != nil {
		return b, fmt.Errorf("xlsx-file: read %s: %w", AgentsSheet, err)
	}
	if len(rows) > 0 {
		h := integrations.NewHeader(rows[0])
		for i, row := range rows[1:] {
			a, err := integrations.ParseAgent(h, row)
			if err != nil {
				b.Rejected = append(b.Rejected, integrations.Rejection{Row: i + 2, Reason: AgentsSheet + ": " + err.Error()})
				continue
			}
			b.Agents = append(b.Agents, a)
		}
	}
	return b, nil
}
