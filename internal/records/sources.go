package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/roivaz/prcohort/internal/logging"
)

// ErrNoSources is returned when a document has no "Sources" array.
var ErrNoSources = errors.New(`document has no "Sources" array`)

type document struct {
	Sources *[]json.RawMessage `json:"Sources"`
}

// Decode reads a {"Sources": [...]} document. Null entries are skipped. Records
// missing any scoring field are kept and reported through log.
func Decode(r io.Reader, log logging.Logger) ([]PullRequestRecord, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode sources document: %w", err)
	}
	if doc.Sources == nil {
		return nil, ErrNoSources
	}

	out := make([]PullRequestRecord, 0, len(*doc.Sources))
	for idx, raw := range *doc.Sources {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			log.Warn("skipping null source entry", "index", idx)
			continue
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("decode source %d: %w", idx, err)
		}
		if missing := auditMissing(raw); len(missing) > 0 {
			log.Warn("record missing scoring fields, treating them as 0", "url", rec.URL, "fields", missing)
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRecord(raw json.RawMessage) (PullRequestRecord, error) {
	var rec PullRequestRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return PullRequestRecord{}, err
	}
	rec.raw = append(json.RawMessage(nil), raw...)
	return rec, nil
}

// auditMissing works on the raw object so explicit nulls count as missing too.
func auditMissing(raw json.RawMessage) []string {
	var missing []string
	for _, f := range ScoringFields {
		v := gjson.GetBytes(raw, string(f))
		if !v.Exists() || v.Type == gjson.Null {
			missing = append(missing, string(f))
		}
	}
	return missing
}

// DecodeDocument parses a single source object, retaining it for re-encoding.
func DecodeDocument(raw json.RawMessage) (PullRequestRecord, error) {
	return decodeRecord(raw)
}

// Document returns the JSON object for one record: the original object when the
// record was decoded, its marshalled fields otherwise.
func (r PullRequestRecord) Document() (json.RawMessage, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.URL, err)
	}
	return b, nil
}

// Encode writes records as a {"Sources": [...]} document with four-space indent.
// Records that were decoded are written as their original object.
func Encode(w io.Writer, recs []PullRequestRecord) error {
	sources := make([]json.RawMessage, 0, len(recs))
	for _, rec := range recs {
		doc, err := rec.Document()
		if err != nil {
			return err
		}
		sources = append(sources, doc)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(struct {
		Sources []json.RawMessage `json:"Sources"`
	}{Sources: sources})
}

// Load reads a Sources document from path.
func Load(path string, log logging.Logger) ([]PullRequestRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recs, err := Decode(f, log.WithValues("file", path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Save writes a Sources document to path, creating parent directories.
func Save(path string, recs []PullRequestRecord) error {
	return WriteFile(path, func(w io.Writer) error { return Encode(w, recs) })
}

// WriteFile creates path (and its parent directories) and hands it to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// PullRequestsOnly drops entries whose Type is set to something other than a pull
// request (the shared snapshots also carry issues and commits).
func PullRequestsOnly(recs []PullRequestRecord) []PullRequestRecord {
	out := recs[:0:0]
	for _, rec := range recs {
		if rec.Type == "" || strings.EqualFold(rec.Type, TypePullRequest) {
			out = append(out, rec)
		}
	}
	return out
}
