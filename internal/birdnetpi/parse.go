package birdnetpi

import (
	"bytes"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tphakala/birdnet-display/internal/detection"
)

const (
	rowClass        = "relative"
	middleCellID    = "recent_detection_middle_td"
	speciesButton   = "species"
	birdImageID     = "birdimage"
	confidenceLabel = "Confidence:"
	newSpeciesLabel = "new species"
	minRowCells     = 3
)

var (
	datePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	integerPattern = regexp.MustCompile(`\d+`)
)

// ParseDetections extracts detection rows from the list page. Rows that do
// not look like detections are skipped. base resolves relative image URLs
// and today is used when a row carries no date.
func ParseDetections(r io.Reader, base *url.URL, today string) ([]detection.Detection, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	roots := []*html.Node{doc}

	// Bare rows outside a table are dropped by the document parser, so
	// parse them again in a table body context.
	if findFirst(doc, isDetectionRow) == nil && bytes.Contains(body, []byte("<tr")) {
		tbody := &html.Node{Type: html.ElementNode, Data: "tbody", DataAtom: atom.Tbody}
		if roots, err = html.ParseFragment(bytes.NewReader(body), tbody); err != nil {
			return nil, err
		}
	}

	var rows []detection.Detection
	for _, root := range roots {
		for _, n := range findAll(root, isDetectionRow) {
			if d, ok := ParseRow(n, base, today); ok {
				rows = append(rows, d)
			}
		}
	}
	return rows, nil
}

func isDetectionRow(n *html.Node) bool {
	return n.DataAtom == atom.Tr && hasClass(n, rowClass)
}

// ParseRow parses one detection row. It reports false for rows with fewer
// than three cells.
func ParseRow(row *html.Node, base *url.URL, today string) (detection.Detection, bool) {
	cells := findAll(row, func(n *html.Node) bool { return n.DataAtom == atom.Td })
	if len(cells) < minRowCells {
		return detection.Detection{}, false
	}

	d := detection.Detection{Name: detection.UnknownSpecies}
	timeOfDay := strings.TrimSpace(strings.ReplaceAll(text(cells[0], ""), "\n", " "))

	if middle := findFirst(row, func(n *html.Node) bool {
		return n.DataAtom == atom.Td && attr(n, "id") == middleCellID
	}); middle != nil {
		if btn := findFirst(middle, func(n *html.Node) bool {
			return n.DataAtom == atom.Button && attr(n, "name") == speciesButton
		}); btn != nil {
			if name := text(btn, ""); name != "" {
				d.Name = name
			}
		}
		if img := findFirst(middle, func(n *html.Node) bool {
			return n.DataAtom == atom.Img && attr(n, "id") == birdImageID
		}); img != nil {
			d.ImageURL = resolve(base, attr(img, "src"))
		}
	}

	for _, cell := range cells {
		t := text(cell, " ")
		if strings.Contains(t, confidenceLabel) {
			d.ConfidenceValue = parseConfidence(t)
			break
		}
	}

	date := today
	if audio := findFirst(row, func(n *html.Node) bool { return n.DataAtom == atom.Audio }); audio != nil {
		for part := range strings.SplitSeq(attr(audio, "src"), "/") {
			if datePattern.MatchString(part) {
				date = part
				break
			}
		}
	}
	d.CapturedAt = strings.TrimSpace(date + " " + timeOfDay)
	d.IsNewSpecies = isNewSpecies(row)

	return d, true
}

// parseConfidence prefers the integer following the label and falls back to
// the first integer in the cell
func parseConfidence(cellText string) int {
	s := cellText
	if _, after, ok := strings.Cut(cellText, confidenceLabel); ok {
		if m := integerPattern.FindString(after); m != "" {
			s = m
		}
	}
	m := integerPattern.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return v
}

// isNewSpecies reports whether any element in the row marks the species as
// new through its text, title or alt
func isNewSpecies(row *html.Node) bool {
	for n := range row.Descendants() {
		var candidates []string
		switch n.Type {
		case html.TextNode:
			candidates = []string{n.Data}
		case html.ElementNode:
			candidates = []string{attr(n, "title"), attr(n, "alt")}
		default:
			continue
		}
		for _, c := range candidates {
			if strings.Contains(strings.ToLower(c), newSpeciesLabel) {
				return true
			}
		}
	}
	return false
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// text joins the stripped text nodes under n with sep, skipping empty ones
func text(n *html.Node, sep string) string {
	var parts []string
	for c := range n.Descendants() {
		if c.Type != html.TextNode {
			continue
		}
		if s := strings.TrimSpace(c.Data); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	return strings.Contains(" "+strings.Join(strings.Fields(attr(n, "class")), " ")+" ", " "+class+" ")
}

// findFirst and findAll include root itself
func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for n := range root.Descendants() {
		if n.Type == html.ElementNode && match(n) {
			return n
		}
	}
	return nil
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	if root.Type == html.ElementNode && match(root) {
		out = append(out, root)
	}
	for n := range root.Descendants() {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
	}
	return out
}
