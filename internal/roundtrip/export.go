package roundtrip

import (
	"encoding/csv"
	"io"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

// ExportHeader is the column order written by Write. It round-trips
// through Parse and Build.
var ExportHeader = append(append([]string{credit.FieldID, credit.FieldComboKey, credit.FieldDate},
	credit.BusinessFields...), credit.FieldReason, credit.FieldStatus)

// Write renders records as CSV with a header row. Fields containing commas,
// quotes or newlines are quoted with doubled quotes.
func Write(w io.Writer, records []credit.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := make([]string, len(ExportHeader))
		for i, h := range ExportHeader {
			if h == credit.FieldComboKey {
				row[i] = rec.Combo()
				continue
			}
			row[i] = rec.Field(h)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
