package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"chatguard/internal/config"
	"chatguard/internal/model"
)

// Extractor converts an image to extracted text plus confidence. The
// pipeline only trusts Text when OK is true.
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) (model.OCRResult, error)
}

var ErrImageTooLarge = errors.New("image too large")

// Tesseract shells out to the tesseract CLI in TSV mode and filters words
// below the configured confidence threshold.
type Tesseract struct {
	binary    string
	languages string
	threshold float64
	maxBytes  int64
	logger    *slog.Logger
}

func NewTesseract(cfg config.OCRConfig, logger *slog.Logger) *Tesseract {
	return &Tesseract{
		binary:    cfg.Binary,
		languages: cfg.Languages,
		threshold: cfg.ConfidenceThreshold,
		maxBytes:  cfg.MaxImageBytes,
		logger:    logger,
	}
}

func (t *Tesseract) ExtractText(ctx context.Context, image []byte) (model.OCRResult, error) {
	if t.maxBytes > 0 && int64(len(image)) > t.maxBytes {
		return model.OCRResult{}, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(image))
	}
	// --psm 6: assume a uniform block of text
	cmd := exec.CommandContext(ctx, t.binary, "stdin", "stdout", "-l", t.languages, "--psm", "6", "tsv")
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return model.OCRResult{}, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	result := t.parseTSV(stdout.String())
	if t.logger != nil {
		t.logger.Info("ocr processed",
			"text_length", len(result.Text),
			"confidence", result.Confidence,
			"words", result.Words,
		)
	}
	return result, nil
}

// parseTSV walks tesseract's word-level TSV output. Rows with conf -1 are
// layout markers, not words.
func (t *Tesseract) parseTSV(out string) model.OCRResult {
	var words []string
	var confSum float64
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" || conf <= t.threshold {
			continue
		}
		words = append(words, word)
		confSum += conf
	}
	res := model.OCRResult{
		Text:  strings.Join(words, " "),
		Words: len(words),
	}
	if len(words) > 0 {
		res.Confidence = confSum / float64(len(words))
		res.OK = true
	}
	return res
}
