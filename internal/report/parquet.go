package report

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lehigh-university-libraries/describer/internal/models"
	"github.com/parquet-go/parquet-go"
)

// Row is the flat, columnar form of an analysis
type Row struct {
	ID              string  `json:"id" parquet:"id"`
	Src             string  `json:"src" parquet:"src"`
	Width           int32   `json:"width" parquet:"width"`
	Height          int32   `json:"height" parquet:"height"`
	ExistingAlt     string  `json:"existing_alt" parquet:"existing_alt"`
	ShortCaption    string  `json:"short_caption" parquet:"short_caption"`
	LongDescription string  `json:"long_description" parquet:"long_description"`
	Confidence      float64 `json:"confidence" parquet:"confidence"`
	Provenance      string  `json:"provenance" parquet:"provenance"`
	Model           string  `json:"model" parquet:"model"`
	CORSLimited     bool    `json:"cors_limited" parquet:"cors_limited"`
	ImageType       string  `json:"image_type" parquet:"image_type"`
	Complexity      string  `json:"complexity" parquet:"complexity"`
	OCRText         string  `json:"ocr_text" parquet:"ocr_text"`
	OCRConfidence   float64 `json:"ocr_confidence" parquet:"ocr_confidence"`
	DurationMS      int64   `json:"duration_ms" parquet:"duration_ms"`
	Error           string  `json:"error" parquet:"error"`
}

// Rows flattens analyses for export
func Rows(results []models.ImageAnalysis) []Row {
	rows := make([]Row, 0, len(results))
	for _, a := range results {
		row := Row{
			ID:          a.Image.ID,
			Src:         a.Image.Src,
			Width:       int32(a.Image.NaturalWidth),
			Height:      int32(a.Image.NaturalHeight),
			ExistingAlt: a.Image.Alt,
			DurationMS:  a.ProcessingTime.Milliseconds(),
			Error:       a.Error,
		}
		if c := a.Caption; c != nil {
			row.ShortCaption = c.ShortCaption
			row.LongDescription = c.LongDescription
			row.Confidence = c.Confidence
			row.Provenance = string(c.Provenance)
			row.Model = c.Model
			row.CORSLimited = c.CORSLimited
		}
		if o := a.OCR; o != nil {
			row.ImageType = string(o.ImageType)
			row.Complexity = string(o.Complexity)
			row.OCRText = o.Text
			row.OCRConfidence = o.Confidence
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteParquet exports analyses to a Parquet file
func WriteParquet(path string, results []models.ImageAnalysis) error {
	rows := Rows(results)
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	slog.Debug("Wrote Parquet export", "path", path, "rows", len(rows))
	return nil
}

// LoadParquet reads rows written by WriteParquet. limit <= 0 reads every row.
func LoadParquet(path string, limit int) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened", "path", path, "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	var out []Row
	batch := make([]Row, 128)
	for {
		n, err := reader.Read(batch)
		out = append(out, batch[:n]...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		if err != nil {
			break
		}
	}

	return out, nil
}
