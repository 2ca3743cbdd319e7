package api

import (
	"html/template"
	"net/http"
	"time"

	"bookmark-cataloger/internal/report"
)

var exportTmpl = template.Must(template.New("export").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Bookmark metadata</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
.stats span { display: inline-block; margin-right: 2rem; }
.tag { display: inline-block; margin: 0 .5rem .5rem 0; }
.bar { background: #ddd; height: .5rem; }
.fill { background: #4a6; height: .5rem; }
textarea { width: 100%; height: 20rem; }
</style>
</head>
<body>
<h1>Bookmark metadata</h1>
<div class="stats">
<span>Total: <b id="total-links">{{.Stats.Total}}</b></span>
<span>Valid: <b id="valid-links">{{.Stats.Valid}}</b></span>
<span>Errors: <b id="error-links">{{.Stats.Errors}}</b></span>
<span>Unique tags: <b id="unique-tags">{{.Stats.UniqueTags}}</b></span>
</div>
<h2>Tags</h2>
<div id="tag-cloud">
{{range .Stats.TopTags}}<div class="tag" style="font-size: {{.FontPx}}px">{{.Name}} ({{.Count}})</div>
{{else}}<div>No tags found</div>
{{end}}</div>
<h2>Categories</h2>
<div id="categories-list">
{{range .Stats.Categories}}<div class="category-item"><span>{{.Name}}</span> <span>{{.Count}}</span>
<div class="bar"><div class="fill" style="width: {{printf "%.0f" .Percent}}%"></div></div></div>
{{else}}<div>No categories found</div>
{{end}}</div>
<h2>CSV</h2>
<p>updated: <span id="meta">{{.Updated}}</span> <a href="/export.csv">download</a></p>
<textarea id="csv" readonly>{{.CSV}}</textarea>
</body>
</html>
`))

type exportView struct {
	Stats   Analytics
	CSV     string
	Updated string
}

func (h *Handler) exportPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	csv, at, err := h.svc.LastCSV(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	recs, err := h.svc.Records(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	view := exportView{Stats: Summarize(recs), CSV: csv, Updated: "-"}
	if !at.IsZero() {
		view.Updated = at.Format(time.DateTime)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := exportTmpl.Execute(w, view); err != nil {
		h.log.Errorf("render export page: %v", err)
	}
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	csv, at, err := h.svc.LastCSV(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName(at)+`"`)
	_, _ = w.Write([]byte(csv))
}
