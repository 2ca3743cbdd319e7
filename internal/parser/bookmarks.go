
package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"bookmark-cataloger/internal/models"
)

// ReadBookmarks parses a Netscape bookmark file (the format browsers export)
// into a forest of nodes. IDs are left empty for the caller to assign.
func ReadBookmarks(r io.Reader) ([]*models.Node, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse bookmarks: %w", err)
	}
	top := doc.Find("dl").First()
	if top.Length() == 0 {
		return nil, nil
	}
	return readList(top), nil
}

// readList converts the <dt> entries of a <dl> into nodes. Exporters wrap
// entries in stray <p> elements, so those are descended into transparently.
func readList(dl *goquery.Selection) []*models.Node {
	var out []*models.Node
	dl.Children().Each(func(i int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "dt":
			if n := readEntry(s); n != nil {
				out = append(out, n)
			}
		case "p":
			out = append(out, readList(s)...)
		}
	})
	return out
}

func readEntry(dt *goquery.Selection) *models.Node {
	if h3 := dt.ChildrenFiltered("h3").First(); h3.Length() > 0 {
		folder := &models.Node{Title: strings.TrimSpace(h3.Text())}
		sub := dt.ChildrenFiltered("dl").First()
		if sub.Length() == 0 {
			if next := dt.Next(); goquery.NodeName(next) == "dl" {
				sub = next
			}
		}
		if sub.Length() > 0 {
			folder.Children = readList(sub)
		}
		return folder
	}
	if a := dt.ChildrenFiltered("a").First(); a.Length() > 0 {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return nil
		}
		return &models.Node{Title: strings.TrimSpace(a.Text()), URL: href}
	}
	return nil
}

// WriteBookmarks renders nodes as a Netscape bookmark file.
func WriteBookmarks(w io.Writer, roots []*models.Node) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "<!DOCTYPE NETSCAPE-Bookmark-file-1>")
	fmt.Fprintln(bw, `<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">`)
	fmt.Fprintln(bw, "<TITLE>Bookmarks</TITLE>")
	fmt.Fprintln(bw, "<H1>Bookmarks</H1>")
	writeList(bw, roots, 0)
	return bw.Flush()
}

func writeList(w *bufio.Writer, nodes []*models.Node, depth int) {
	indent := strings.Repeat("    ", depth)
	fmt.Fprintf(w, "%s<DL><p>\n", indent)
	for _, n := range nodes {
		if n.IsFolder() {
			attr := ""
			if depth == 0 && IsToolbarTitle(n.Title) {
				attr = ` PERSONAL_TOOLBAR_FOLDER="true"`
			}
			fmt.Fprintf(w, "%s    <DT><H3%s>%s</H3>\n", indent, attr, html.EscapeString(n.Title))
			writeList(w, n.Children, depth+1)
			continue
		}
		fmt.Fprintf(w, "%s    <DT><A HREF=\"%s\">%s</A>\n", indent, html.EscapeString(n.URL), html.EscapeString(n.Title))
	}
	fmt.Fprintf(w, "%s</DL><p>\n", indent)
}

var toolbarTitles = []string{"bookmarks bar", "bookmarks toolbar", "favorites bar", "bookmarks menu"}

// IsToolbarTitle reports whether a top-level folder title names the browser's
// bookmarks bar.
func IsToolbarTitle(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	for _, s := range toolbarTitles {
		if t == s {
			return true
		}
	}
	return false
}
