package result

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// bandColors are the fill colors of the score bar.
var bandColors = map[Band][3]int{
	BandGood: {34, 197, 94},
	BandFair: {234, 179, 8},
	BandPoor: {239, 68, 68},
}

// WritePDF renders the report as an A4 portrait PDF.
func WritePDF(w io.Writer, r *Report, generated time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.Title(), true)
	pdf.SetCreator("skillcheck", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, tr(r.Title()), "", "L", false)
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.Cell(0, 6, "Generated "+generated.Format("2006-01-02 15:04"))
	pdf.Ln(10)
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(45, 8, "Status:")
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, r.Status())
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(45, 8, "Passing score:")
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("%d%%", r.Result.PassingScore))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(45, 8, "Correct answers:")
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("%d / %d (%d%%)", r.Correct(), r.Total(), r.Percent()))
	pdf.Ln(8)

	if r.Result.TimeTaken > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(45, 8, "Time taken:")
		pdf.SetFont("Arial", "", 12)
		pdf.Cell(0, 8, r.Result.TimeTaken.String())
		pdf.Ln(8)
	}

	drawBar(pdf, r.Percent(), bandColors[r.Band()])
	pdf.Ln(6)

	if subs := r.Subtopics(); len(subs) > 0 {
		pdf.SetFont("Arial", "B", 14)
		pdf.Cell(0, 10, "By subtopic")
		pdf.Ln(10)
		for _, s := range subs {
			name := s.Name
			if name == "" {
				name = "General"
			}
			pdf.SetFont("Arial", "", 11)
			pdf.Cell(90, 7, tr(name))
			pdf.Cell(0, 7, fmt.Sprintf("%d / %d (%d%%)", s.Correct, s.Total, s.Percent()))
			pdf.Ln(7)
			drawBar(pdf, s.Percent(), bandColors[BandFor(s.Percent())])
			pdf.Ln(2)
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, "Questions")
	pdf.Ln(10)
	for _, d := range r.Details() {
		pdf.SetFont("Arial", "B", 11)
		pdf.MultiCell(0, 7, tr(fmt.Sprintf("%d. %s", d.Number, d.Question)), "", "L", false)

		pdf.SetFont("Arial", "", 11)
		verdict := "Correct"
		if !d.Correct {
			verdict = "Incorrect"
		}
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("Your answer: %s (%s)", d.Selected, verdict)), "", "L", false)
		if d.CorrectText != "" {
			pdf.MultiCell(0, 6, tr("Correct answer: "+d.CorrectText), "", "L", false)
		}
		pdf.MultiCell(0, 6, fmt.Sprintf("Points: %d / %d", d.EarnedPoints, d.Points), "", "L", false)
		pdf.Ln(3)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

func drawBar(pdf *gofpdf.Fpdf, percent int, rgb [3]int) {
	const width, height = 170.0, 4.0
	x, y := pdf.GetX(), pdf.GetY()

	pdf.SetFillColor(229, 231, 235)
	pdf.Rect(x, y, width, height, "F")
	if percent > 0 {
		pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
		pdf.Rect(x, y, width*float64(percent)/100, height, "F")
	}
	pdf.SetY(y + height)
}
