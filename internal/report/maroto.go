package report

import (
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var (
	brandColor = &props.Color{Red: 15, Green: 76, Blue: 117}
	inkColor   = &props.Color{Red: 20, Green: 20, Blue: 20}
	headFill   = &props.Color{Red: 15, Green: 76, Blue: 117}
	white      = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// table column widths on the 12-column grid: Data, Descrição, Categoria, Tipo, Valor
var tableSpans = []int{2, 4, 2, 2, 2}

// MarotoRenderer draws the report as an A4 portrait PDF.
type MarotoRenderer struct {
	m core.Maroto
}

// NewMarotoRenderer matches RendererFactory.
func NewMarotoRenderer() Renderer {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithOrientation(orientation.Vertical).
		WithLeftMargin(14).
		WithTopMargin(14).
		WithRightMargin(14).
		WithBottomMargin(12).
		Build()

	m := maroto.New(cfg)
	_ = m.RegisterFooter(
		row.New(4).Add(col.New(12).Add(line.New())),
		row.New(6).Add(text.NewCol(12, "Meufin", props.Text{Size: 7, Align: align.Right, Color: inkColor})),
	)
	return &MarotoRenderer{m: m}
}

func (r *MarotoRenderer) Title(s string) {
	r.m.AddRow(12, text.NewCol(12, s, props.Text{
		Top:   2,
		Size:  16,
		Style: fontstyle.Bold,
		Color: brandColor,
	}))
}

func (r *MarotoRenderer) Line(s string) {
	r.m.AddRow(6, text.NewCol(12, s, props.Text{Size: 10, Color: inkColor}))
}

func (r *MarotoRenderer) Heading(s string) {
	r.m.AddRow(4)
	r.m.AddRow(9, text.NewCol(12, s, props.Text{
		Top:   2,
		Size:  13,
		Style: fontstyle.Bold,
		Color: brandColor,
	}))
	r.m.AddRow(2, line.NewCol(12))
}

func (r *MarotoRenderer) Paragraph(s string) {
	r.m.AddAutoRow(text.NewCol(12, s, props.Text{Top: 1, Bottom: 2, Size: 10, Color: inkColor}))
}

func (r *MarotoRenderer) Table(header []string, rows [][]string) {
	r.m.AddRow(4)
	head := make([]core.Col, 0, len(header))
	for i, h := range header {
		head = append(head, text.NewCol(span(i), h, props.Text{
			Top:   1.5,
			Left:  1,
			Size:  9,
			Style: fontstyle.Bold,
			Color: white,
		}))
	}
	r.m.AddRows(row.New(7).WithStyle(&props.Cell{BackgroundColor: headFill}).Add(head...))

	if len(rows) == 0 {
		r.m.AddRow(7, text.NewCol(12, "Sem registros.", props.Text{Top: 1.5, Size: 9, Color: inkColor}))
		return
	}
	for _, cells := range rows {
		cols := make([]core.Col, 0, len(cells))
		for i, c := range cells {
			p := props.Text{Top: 1.5, Left: 1, Size: 9, Color: inkColor}
			if i == len(cells)-1 {
				p.Align = align.Right
			}
			cols = append(cols, text.NewCol(span(i), c, p))
		}
		r.m.AddAutoRow(cols...)
	}
}

func (r *MarotoRenderer) Image(data []byte, format ImageFormat) error {
	ext := extension.Png
	if format == JPEG {
		ext = extension.Jpg
	}
	r.m.AddRow(62, col.New(8).Add(image.NewFromBytes(data, ext, props.Rect{Center: true, Percent: 95})), col.New(4))
	r.m.AddRow(3)
	return nil
}

func (r *MarotoRenderer) QRCode(content, caption string) error {
	if content == "" {
		return ErrQRUnavailable
	}
	r.m.AddRow(36,
		code.NewQrCol(3, content, props.Rect{Center: true, Percent: 95}),
		text.NewCol(9, caption, props.Text{Top: 15, Left: 4, Size: 11, Color: inkColor}),
	)
	return nil
}

func (r *MarotoRenderer) Render() ([]byte, error) {
	doc, err := r.m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func span(i int) int {
	if i < len(tableSpans) {
		return tableSpans[i]
	}
	return 1
}
