// Package report renders recommended poses into a printable PDF.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/MikeSquared-Agency/Sadhana/internal/catalog"
)

// ErrNoPoses is returned when asked to render an empty recommendation.
var ErrNoPoses = errors.New("no poses to report")

const (
	borderMargin = 20.0
	borderWidth  = 2.0
	contentInset = 36.0
	imageWidth   = 250.0
	imageHeight  = 150.0
	maxImageSize = 5 << 20
)

// Generator builds one page per pose.
type Generator struct {
	client *http.Client
	logger *slog.Logger
}

// NewGenerator creates a Generator. A nil client uses a 10s-timeout default.
func NewGenerator(client *http.Client, logger *slog.Logger) *Generator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Generator{client: client, logger: logger}
}

// Generate renders poses in the given order and returns the PDF bytes.
func (g *Generator) Generate(ctx context.Context, poses []catalog.Pose) ([]byte, error) {
	if len(poses) == 0 {
		return nil, ErrNoPoses
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(contentInset, contentInset, contentInset)
	pdf.SetAutoPageBreak(true, contentInset)
	pdf.SetHeaderFunc(func() { drawBorder(pdf) })
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i, pose := range poses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pdf.AddPage()
		g.renderPose(ctx, pdf, tr, i, pose)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}
	return buf.Bytes(), nil
}

func drawBorder(pdf *fpdf.Fpdf) {
	w, h := pdf.GetPageSize()
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(borderWidth)
	pdf.Rect(borderMargin, borderMargin, w-2*borderMargin, h-2*borderMargin, "D")
}

func (g *Generator) renderPose(ctx context.Context, pdf *fpdf.Fpdf, tr func(string) string, n int, pose catalog.Pose) {
	name := strings.TrimSpace(pose.Name)
	if name == "" {
		name = "Unknown Asana"
	}

	pdf.SetFont("Helvetica", "B", 22)
	pdf.MultiCell(0, 28, tr(name), "", "C", false)
	pdf.Ln(10)

	if pose.ImageURL != "" {
		g.renderImage(ctx, pdf, n, pose.ImageURL)
	}

	heading(pdf, "Steps to Perform:")
	pdf.SetFont("Helvetica", "", 11)
	for i, step := range pose.PoseDirection {
		pdf.MultiCell(0, 15, tr(fmt.Sprintf("%d. %s", i+1, step)), "", "L", false)
	}

	pdf.Ln(10)
	heading(pdf, "Contraindications:")
	pdf.SetFont("Helvetica", "", 11)
	for _, c := range pose.Contraindications {
		pdf.MultiCell(0, 15, tr("• "+c), "", "L", false)
	}
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 20, text, "", 1, "L", false, 0, "")
}

func (g *Generator) renderImage(ctx context.Context, pdf *fpdf.Fpdf, n int, url string) {
	data, imageType, err := g.fetchImage(ctx, url)
	if err != nil {
		g.logger.Warn("skipping pose image", "url", url, "error", err)
		return
	}

	name := fmt.Sprintf("pose-%d", n)
	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if pdf.Err() {
		// A bad image must not sink the whole report.
		g.logger.Warn("skipping undecodable pose image", "url", url, "error", pdf.Error())
		pdf.ClearError()
		return
	}

	pageW, _ := pdf.GetPageSize()
	x := (pageW - imageWidth) / 2
	pdf.ImageOptions(name, x, pdf.GetY(), imageWidth, imageHeight, true, opts, 0, "")
	pdf.Ln(10)
}

func (g *Generator) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetching image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}

	imageType := imageTypeFor(http.DetectContentType(data))
	if imageType == "" {
		return nil, "", fmt.Errorf("unsupported image type %q", http.DetectContentType(data))
	}
	return data, imageType, nil
}

func imageTypeFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/jpeg"):
		return "JPG"
	case strings.HasPrefix(contentType, "image/png"):
		return "PNG"
	case strings.HasPrefix(contentType, "image/gif"):
		return "GIF"
	default:
		return ""
	}
}
