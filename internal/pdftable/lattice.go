// Package pdftable detects ruled (lattice) tables in PDF pages.
//
// A table is recognized from the rectangles a page draws: thin rectangles are
// treated as ruling lines and larger ones as cell boxes. Rectangles that touch
// are grouped into one table, their edges are snapped into a grid, and the
// positioned glyphs of the page are assigned to the grid cells.
package pdftable

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrNoTable is returned when no page holds a detectable table.
	ErrNoTable = errors.New("no lattice table found")
	// ErrMalformed is returned when the document cannot be parsed.
	ErrMalformed = errors.New("malformed PDF")
)

// LineBreak joins the lines of a multi-line cell.
const LineBreak = "\r"

// Options tunes the lattice detector. Distances are in PDF user-space units.
type Options struct {
	// SnapTolerance merges grid edges closer than this.
	SnapTolerance float64
	// LineTolerance is the maximum thickness of a ruling line.
	LineTolerance float64
	// JoinTolerance is the gap allowed between rectangles of one table.
	JoinTolerance float64
	// MinRows and MinCols reject grids smaller than this.
	MinRows int
	MinCols int
	// KeepEmptyColumns disables removal of columns that are empty in every row.
	KeepEmptyColumns bool
}

// DefaultOptions returns the detector settings used by the pipeline.
func DefaultOptions() Options {
	return Options{
		SnapTolerance: 2,
		LineTolerance: 2,
		JoinTolerance: 3,
		MinRows:       2,
		MinCols:       2,
	}
}

// Table is one detected lattice table.
type Table struct {
	Page int
	Rows [][]string
}

// Document is the result of scanning every page of a PDF.
type Document struct {
	Pages  int
	Tables []Table
}

// Rows concatenates the rows of every table in reading order.
func (d Document) Rows() [][]string {
	var rows [][]string
	for _, t := range d.Tables {
		rows = append(rows, t.Rows...)
	}
	return rows
}

// ExtractDocument parses data as a PDF and extracts the lattice tables of
// every page. Parser panics are reported as ErrMalformed.
func ExtractDocument(data []byte, opts Options) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = Document{}
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	doc.Pages = reader.NumPage()
	for i := 1; i <= doc.Pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		doc.Tables = append(doc.Tables, ExtractPage(i, page.Content(), opts)...)
	}

	if len(doc.Tables) == 0 {
		return doc, ErrNoTable
	}
	return doc, nil
}

type box struct {
	x0, y0, x1, y1 float64
}

func (b box) width() float64  { return b.x1 - b.x0 }
func (b box) height() float64 { return b.y1 - b.y0 }

func (b box) touches(o box, tol float64) bool {
	return b.x0-tol <= o.x1 && o.x0-tol <= b.x1 && b.y0-tol <= o.y1 && o.y0-tol <= b.y1
}

func (b box) union(o box) box {
	return box{
		x0: math.Min(b.x0, o.x0),
		y0: math.Min(b.y0, o.y0),
		x1: math.Max(b.x1, o.x1),
		y1: math.Max(b.y1, o.y1),
	}
}

// ExtractPage finds the lattice tables drawn in content, ordered top to
// bottom then left to right.
func ExtractPage(page int, content pdf.Content, opts Options) []Table {
	opts = withDefaults(opts)

	boxes := make([]box, 0, len(content.Rect))
	for _, r := range content.Rect {
		b := box{
			x0: math.Min(r.Min.X, r.Max.X),
			y0: math.Min(r.Min.Y, r.Max.Y),
			x1: math.Max(r.Min.X, r.Max.X),
			y1: math.Max(r.Min.Y, r.Max.Y),
		}
		if b.width() <= opts.LineTolerance && b.height() <= opts.LineTolerance {
			continue
		}
		boxes = append(boxes, b)
	}

	groups := groupBoxes(boxes, opts.JoinTolerance)

	type placed struct {
		bounds box
		table  Table
	}
	var found []placed
	for _, g := range groups {
		xs, ys := gridEdges(g, opts)
		if len(xs)-1 < opts.MinCols || len(ys)-1 < opts.MinRows {
			continue
		}
		rows := fillGrid(xs, ys, content.Text)
		if !opts.KeepEmptyColumns {
			rows = dropEmptyColumns(rows)
		}
		if len(rows) == 0 {
			continue
		}
		bounds := g[0]
		for _, b := range g[1:] {
			bounds = bounds.union(b)
		}
		found = append(found, placed{bounds: bounds, table: Table{Page: page, Rows: rows}})
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].bounds.y1 != found[j].bounds.y1 {
			return found[i].bounds.y1 > found[j].bounds.y1
		}
		return found[i].bounds.x0 < found[j].bounds.x0
	})

	tables := make([]Table, len(found))
	for i, f := range found {
		tables[i] = f.table
	}
	return tables
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.SnapTolerance <= 0 {
		opts.SnapTolerance = def.SnapTolerance
	}
	if opts.LineTolerance <= 0 {
		opts.LineTolerance = def.LineTolerance
	}
	if opts.JoinTolerance <= 0 {
		opts.JoinTolerance = def.JoinTolerance
	}
	if opts.MinRows <= 0 {
		opts.MinRows = def.MinRows
	}
	if opts.MinCols <= 0 {
		opts.MinCols = def.MinCols
	}
	return opts
}

// groupBoxes partitions boxes into connected components of touching boxes.
func groupBoxes(boxes []box, tol float64) [][]box {
	parent := make([]int, len(boxes))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			if boxes[i].touches(boxes[j], tol) {
				if ri, rj := find(i), find(j); ri != rj {
					parent[rj] = ri
				}
			}
		}
	}

	index := map[int]int{}
	var groups [][]box
	for i, b := range boxes {
		root := find(i)
		gi, ok := index[root]
		if !ok {
			gi = len(groups)
			index[root] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], b)
	}
	return groups
}

// gridEdges returns the column edges in ascending x and the row edges in
// descending y (top of the page first).
func gridEdges(group []box, opts Options) ([]float64, []float64) {
	var xs, ys []float64
	for _, b := range group {
		switch {
		case b.width() <= opts.LineTolerance:
			xs = append(xs, (b.x0+b.x1)/2)
		case b.height() <= opts.LineTolerance:
			ys = append(ys, (b.y0+b.y1)/2)
		default:
			xs = append(xs, b.x0, b.x1)
			ys = append(ys, b.y0, b.y1)
		}
	}
	xs = snap(xs, opts.SnapTolerance)
	ys = snap(ys, opts.SnapTolerance)
	for i, j := 0, len(ys)-1; i < j; i, j = i+1, j-1 {
		ys[i], ys[j] = ys[j], ys[i]
	}
	return xs, ys
}

// snap sorts values and merges runs closer than tol into their mean.
func snap(values []float64, tol float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sort.Float64s(values)

	var out []float64
	sum, n, last := values[0], 1, values[0]
	for _, v := range values[1:] {
		if v-last <= tol {
			sum += v
			n++
		} else {
			out = append(out, sum/float64(n))
			sum, n = v, 1
		}
		last = v
	}
	return append(out, sum/float64(n))
}

// fillGrid assigns each glyph to the cell containing its center and renders
// the cell text. Rows left entirely empty are dropped.
func fillGrid(xs, ys []float64, glyphs []pdf.Text) [][]string {
	nRows, nCols := len(ys)-1, len(xs)-1
	cells := make([][][]pdf.Text, nRows)
	for i := range cells {
		cells[i] = make([][]pdf.Text, nCols)
	}

	for _, g := range glyphs {
		cx := g.X + g.W/2
		cy := g.Y + g.FontSize/4
		col := locate(cx, xs, true)
		row := locate(cy, ys, false)
		if col < 0 || row < 0 {
			continue
		}
		cells[row][col] = append(cells[row][col], g)
	}

	var rows [][]string
	for _, cellRow := range cells {
		row := make([]string, nCols)
		empty := true
		for j, glyphs := range cellRow {
			row[j] = cellText(glyphs)
			if row[j] != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}

// locate returns the interval of edges containing v, or -1.
func locate(v float64, edges []float64, ascending bool) int {
	for i := 0; i+1 < len(edges); i++ {
		lo, hi := edges[i], edges[i+1]
		if !ascending {
			lo, hi = hi, lo
		}
		if v >= lo && v < hi {
			return i
		}
	}
	return -1
}

type textLine struct {
	y      float64
	glyphs []pdf.Text
}

// cellText renders the glyphs of one cell, top line first.
func cellText(glyphs []pdf.Text) string {
	if len(glyphs) == 0 {
		return ""
	}

	var lines []*textLine
	for _, g := range glyphs {
		tol := g.FontSize / 2
		if tol <= 0 {
			tol = 1
		}
		var target *textLine
		for _, l := range lines {
			if math.Abs(l.y-g.Y) <= tol {
				target = l
				break
			}
		}
		if target == nil {
			target = &textLine{y: g.Y}
			lines = append(lines, target)
		}
		target.glyphs = append(target.glyphs, g)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var out []string
	for _, l := range lines {
		if s := strings.TrimSpace(lineText(l.glyphs)); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, LineBreak)
}

func lineText(glyphs []pdf.Text) string {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	var sb strings.Builder
	for i, g := range glyphs {
		if i > 0 {
			prev := glyphs[i-1]
			gap := g.X - (prev.X + prev.W)
			if prev.W > 0 && gap > 0.15*g.FontSize && prev.S != " " && g.S != " " {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.S)
	}
	return sb.String()
}

// dropEmptyColumns removes columns with no text in any row, such as the
// margins between a table and an enclosing frame.
func dropEmptyColumns(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	keep := make([]bool, width)
	for _, r := range rows {
		for j, c := range r {
			if c != "" {
				keep[j] = true
			}
		}
	}

	out := make([][]string, len(rows))
	for i, r := range rows {
		for j, c := range r {
			if keep[j] {
				out[i] = append(out[i], c)
			}
		}
	}
	return out
}
