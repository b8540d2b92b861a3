package matching

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// PairsHeader labels the treatment and control columns with the study's cohort names.
var PairsHeader = []string{"ChatGPT PR", "Non-ChatGPT PR", "Similarity Score"}

// WritePairs writes pairs as CSV with scores rounded to two decimals.
func WritePairs(w io.Writer, pairs []Pair) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PairsHeader); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := cw.Write([]string{p.TreatmentURL, p.ControlURL, fmt.Sprintf("%.2f", p.Score)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPairRefs reads the first two columns of a pairs CSV, skipping the header row.
func ReadPairRefs(r io.Reader) ([]PairRef, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	refs := make([]PairRef, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected at least 2 columns, got %d", i+2, len(row))
		}
		refs = append(refs, PairRef{
			TreatmentURL: strings.TrimSpace(row[0]),
			ControlURL:   strings.TrimSpace(row[1]),
		})
	}
	return refs, nil
}

// Refs drops the scores of pairs, keeping their order.
func Refs(pairs []Pair) []PairRef {
	refs := make([]PairRef, len(pairs))
	for i, p := range pairs {
		refs[i] = PairRef{TreatmentURL: p.TreatmentURL, ControlURL: p.ControlURL}
	}
	return refs
}
