// Package ingest builds the index artifacts from a tabular FAQ source.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/kaabil/faqbot/internal/domain"
	"github.com/kaabil/faqbot/internal/index"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ReadSource parses a FAQ table from path, dispatching on the extension.
func ReadSource(path string) ([]domain.FAQ, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported source format %q, want .csv or .xlsx", filepath.Ext(path))
	}
}

// ReadCSV parses a FAQ table from a CSV file. The header row maps columns
// by name; question and answer are required, category and source_url
// optional. Row order defines the FAQ ids.
func ReadCSV(path string) ([]domain.FAQ, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv %s has no header row", path)
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		return nil, fmt.Errorf("csv %s: %w", path, err)
	}

	return collectRows(rows[1:], cols), nil
}

// ReadXLSX parses a FAQ table from the first sheet of an XLSX workbook,
// with the same column contract as ReadCSV.
func ReadXLSX(path string) ([]domain.FAQ, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("xlsx %s has no header row", path)
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		return nil, fmt.Errorf("xlsx %s: %w", path, err)
	}

	return collectRows(rows[1:], cols), nil
}

// collectRows maps data rows to FAQ entries, skipping rows where both
// question and answer are empty. Output order defines the ids.
func collectRows(rows [][]string, cols columns) []domain.FAQ {
	faqs := make([]domain.FAQ, 0, len(rows))
	for _, row := range rows {
		faq := faqFromRow(len(faqs), row, cols)
		if faq.Question == "" && faq.Answer == "" {
			continue
		}
		faqs = append(faqs, faq)
	}
	return faqs
}

// columns holds header positions. -1 means absent.
type columns struct {
	question  int
	answer    int
	category  int
	sourceURL int
}

func mapColumns(header []string) (columns, error) {
	cols := columns{question: -1, answer: -1, category: -1, sourceURL: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "question":
			cols.question = i
		case "answer":
			cols.answer = i
		case "category":
			cols.category = i
		case "source_url":
			cols.sourceURL = i
		}
	}
	if cols.question < 0 || cols.answer < 0 {
		return columns{}, fmt.Errorf("header must contain question and answer columns")
	}
	return cols, nil
}

func faqFromRow(id int, row []string, cols columns) domain.FAQ {
	return domain.FAQ{
		ID:        id,
		Question:  cell(row, cols.question),
		Answer:    cell(row, cols.answer),
		Category:  cell(row, cols.category),
		SourceURL: cell(row, cols.sourceURL),
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Builder embeds FAQ rows and writes the index artifacts.
type Builder struct {
	embed  Embedder
	model  string
	logger *zap.Logger
}

// NewBuilder creates an index builder. model is recorded in the metadata
// sidecar so serving can verify it matches the query embedder.
func NewBuilder(embed Embedder, model string, logger *zap.Logger) *Builder {
	return &Builder{embed: embed, model: model, logger: logger}
}

// Build embeds every FAQ entry and writes the artifacts. Each row is
// embedded as question and answer joined by a newline; vectors are
// L2-normalized so inner product equals cosine similarity.
func (b *Builder) Build(ctx context.Context, faqs []domain.FAQ, indexPath, metaPath string) error {
	if len(faqs) == 0 {
		return fmt.Errorf("no FAQ rows to index")
	}

	vectors := make([][]float32, 0, len(faqs))
	for i, faq := range faqs {
		res, err := b.embed.Embed(ctx, faq.Question+"\n"+faq.Answer)
		if err != nil {
			return fmt.Errorf("embed row %d: %w", i, err)
		}
		vec, err := normalize(res.Embedding)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		vectors = append(vectors, vec)

		b.logger.Debug("embedded FAQ row",
			zap.Int("id", faq.ID),
			zap.String("question", faq.Question),
		)
	}

	if err := index.WriteArtifacts(indexPath, metaPath, vectors, index.Meta{
		Items:          faqs,
		EmbeddingModel: b.model,
	}); err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}

	b.logger.Info("index artifacts written",
		zap.Int("rows", len(faqs)),
		zap.Int("dimensions", len(vectors[0])),
		zap.String("index_path", indexPath),
		zap.String("meta_path", metaPath),
	)
	return nil
}

func normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, domain.ErrDegenerateVector
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}
