// Package report renders finished audit reports into the formats the
// API and CLI serve: CSV rows and standalone HTML pages. JSON output is
// plain encoding of models.AuditReport and needs no presenter.
package report

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/seolens/seolens/models"
)

// WriteCSV writes the report's check results as CSV with a
// category,check,status,message,value header row. Results appear in
// canonical category order. Value maps are JSON-encoded; empty values
// produce an empty cell.
func WriteCSV(w io.Writer, r *models.AuditReport) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"category", "check", "status", "message", "value"}); err != nil {
		return err
	}

	for _, res := range r.EnabledResults() {
		value := ""
		if len(res.Value) > 0 {
			b, err := json.Marshal(res.Value)
			if err == nil {
				value = string(b)
			}
		}
		row := []string{
			string(res.Category),
			res.Name,
			string(res.Status),
			res.Message,
			value,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
