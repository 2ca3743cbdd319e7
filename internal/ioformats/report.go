
package ioformats

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"bookmark-cataloger/internal/models"
)

// ReportHeader is the column order of the report CSV.
var ReportHeader = []string{"url", "title", "description", "tags", "category", "ok", "error", "lastFetchedAt"}

// TagSeparator joins a record's tags inside one CSV cell.
const TagSeparator = "|"

// timestampLayout is ISO-8601 with milliseconds in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// WriteReport writes every record as one CSV row, sorted by URL.
func WriteReport(w io.Writer, records models.RecordsMap) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeader); err != nil {
		return err
	}
	for _, r := range SortedRecords(records) {
		if err := cw.Write(reportRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ComputeCSV renders the report into a string.
func ComputeCSV(records models.RecordsMap) (string, error) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, records); err != nil {
		return "", fmt.Errorf("compute csv: %w", err)
	}
	return buf.String(), nil
}

func reportRow(r models.LinkRecord) []string {
	ts := ""
	if !r.LastFetchedAt.IsZero() {
		ts = r.LastFetchedAt.UTC().Format(timestampLayout)
	}
	return []string{
		r.URL,
		r.Title,
		r.Description,
		strings.Join(r.Tags, TagSeparator),
		r.Category,
		strconv.FormatBool(r.OK),
		r.Error,
		ts,
	}
}

// ReadReport parses a report CSV back into records.
func ReadReport(r io.Reader) (models.RecordsMap, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	out := models.RecordsMap{}
	if len(rows) == 0 {
		return out, nil
	}
	idx := make(map[string]int, len(ReportHeader))
	for _, name := range ReportHeader {
		i := columnIndex(rows[0], name)
		if i == -1 {
			return nil, fmt.Errorf("read report: missing column %q", name)
		}
		idx[name] = i
	}
	for n, row := range rows[1:] {
		ok, err := strconv.ParseBool(row[idx["ok"]])
		if err != nil {
			return nil, fmt.Errorf("read report: row %d: %w", n+2, err)
		}
		rec := models.LinkRecord{
			URL:         row[idx["url"]],
			Title:       row[idx["title"]],
			Description: row[idx["description"]],
			Tags:        []string{},
			Category:    row[idx["category"]],
			OK:          ok,
			Error:       row[idx["error"]],
		}
		if tags := row[idx["tags"]]; tags != "" {
			rec.Tags = strings.Split(tags, TagSeparator)
		}
		if ts := row[idx["lastFetchedAt"]]; ts != "" {
			at, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, fmt.Errorf("read report: row %d: %w", n+2, err)
			}
			rec.LastFetchedAt = at
		}
		out[rec.URL] = rec
	}
	return out, nil
}

// SortedRecords returns the records ordered by URL.
func SortedRecords(records models.RecordsMap) []models.LinkRecord {
	out := make([]models.LinkRecord, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
