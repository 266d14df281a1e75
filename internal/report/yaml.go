package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/describer/internal/models"
	"gopkg.in/yaml.v3"
)

// RunConfig represents the configuration section of the report
type RunConfig struct {
	Page      string   `yaml:"page"`
	RunID     string   `yaml:"runid"`
	Providers []string `yaml:"providers"`
	Timestamp string   `yaml:"timestamp"`
}

// Summary counts outcomes across the run
type Summary struct {
	Total        int                       `yaml:"total"`
	Errors       int                       `yaml:"errors"`
	CORSLimited  int                       `yaml:"corslimited"`
	ByProvenance map[models.Provenance]int `yaml:"byprovenance"`
}

// Entry represents a single analyzed image
type Entry struct {
	ID              string  `yaml:"id"`
	Src             string  `yaml:"src"`
	ExistingAlt     string  `yaml:"existingalt,omitempty"`
	ShortCaption    string  `yaml:"shortcaption"`
	LongDescription string  `yaml:"longdescription"`
	Confidence      float64 `yaml:"confidence"`
	Provenance      string  `yaml:"provenance"`
	Model           string  `yaml:"model"`
	ImageType       string  `yaml:"imagetype,omitempty"`
	OCRText         string  `yaml:"ocrtext,omitempty"`
	DurationMS      int64   `yaml:"durationms"`
	Error           string  `yaml:"error,omitempty"`
}

// Report represents a complete bulk analysis report
type Report struct {
	Config  RunConfig `yaml:"config"`
	Summary Summary   `yaml:"summary"`
	Results []Entry   `yaml:"results"`
}

// Build assembles a report from bulk results
func Build(page, runID string, providerNames []string, results []models.ImageAnalysis) Report {
	r := Report{
		Config: RunConfig{
			Page:      page,
			RunID:     runID,
			Providers: providerNames,
			Timestamp: time.Now().Format("2006-01-02_15-04-05"),
		},
		Summary: Summary{
			Total:        len(results),
			ByProvenance: make(map[models.Provenance]int),
		},
		Results: make([]Entry, 0, len(results)),
	}

	for _, a := range results {
		entry := Entry{
			ID:          a.Image.ID,
			Src:         a.Image.Src,
			ExistingAlt: a.Image.Alt,
			DurationMS:  a.ProcessingTime.Milliseconds(),
			Error:       a.Error,
		}
		if a.Caption != nil {
			entry.ShortCaption = a.Caption.ShortCaption
			entry.LongDescription = a.Caption.LongDescription
			entry.Confidence = a.Caption.Confidence
			entry.Provenance = string(a.Caption.Provenance)
			entry.Model = a.Caption.Model
			r.Summary.ByProvenance[a.Caption.Provenance]++
			if a.Caption.CORSLimited {
				r.Summary.CORSLimited++
			}
		}
		if a.OCR != nil {
			entry.ImageType = string(a.OCR.ImageType)
			entry.OCRText = a.OCR.Text
		}
		if a.Error != "" {
			r.Summary.Errors++
		}
		r.Results = append(r.Results, entry)
	}

	return r
}

// SaveYAML writes the report into dir and returns the file path
func SaveYAML(dir string, r Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("describer-%s.yaml", r.Config.Timestamp))

	data, err := yaml.Marshal(&r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}

	return filename, nil
}
