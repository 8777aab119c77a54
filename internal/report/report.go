// Package report renders a session's question/answer history as a PDF.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-pdf/fpdf"
)

type Item struct {
	Question     string
	Answer       string
	FileName     string
	ResponseTime time.Duration
	AskedAt      time.Time
}

type FileLine struct {
	Name       string
	MimeType   string
	Size       int64
	Link       string
	UploadedAt time.Time
}

type Report struct {
	Title       string
	SessionID   string
	GeneratedAt time.Time
	Items       []Item
	Files       []FileLine
}

// Render writes the report as a PDF document to w.
func Render(w io.Writer, r Report) error {
	if r.Title == "" {
		r.Title = "File QA Report"
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(r.Title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(r.Title))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.Cell(0, 5, tr(fmt.Sprintf("Session %s, generated %s", r.SessionID, r.GeneratedAt.Format(time.RFC1123))))
	pdf.Ln(10)
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Questions and Answers")
	pdf.Ln(10)
	if len(r.Items) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, "No questions were asked in this session.")
		pdf.Ln(8)
	}
	for i, item := range r.Items {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, item.Question)), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(item.Answer), "", "L", false)

		meta := fmt.Sprintf("Answered in %s", item.ResponseTime.Round(time.Millisecond))
		if item.FileName != "" {
			meta += ", file: " + item.FileName
		}
		if !item.AskedAt.IsZero() {
			meta += ", " + humanize.Time(item.AskedAt)
		}
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(100, 100, 100)
		pdf.MultiCell(0, 4, tr(meta), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(4)
	}

	if len(r.Files) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, "Files")
		pdf.Ln(10)
		for _, f := range r.Files {
			pdf.SetFont("Helvetica", "", 10)
			pdf.Write(5, tr(fmt.Sprintf("%s (%s, %s) ", f.Name, f.MimeType, humanize.Bytes(uint64(f.Size)))))
			if f.Link != "" {
				pdf.SetTextColor(37, 99, 235)
				pdf.WriteLinkString(5, "download", f.Link)
				pdf.SetTextColor(0, 0, 0)
			}
			pdf.Ln(7)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render report pdf failed: %w", err)
	}
	return nil
}
