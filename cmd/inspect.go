package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/describer/internal/report"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var limit int
	var interactive bool
	var showOCR bool

	cmd := &cobra.Command{
		Use:   "inspect <results.parquet>",
		Short: "Inspect exported analysis results",
		Long: `Inspect rows from a Parquet export written by "describer analyze --parquet".

Useful for reviewing generated captions before accepting them as alt text.`,
		Example: `  # Review the first 5 captions one at a time
  describer inspect results.parquet --limit 5 --interactive

  # Show every row without OCR text
  describer inspect results.parquet --limit 0 --ocr=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := report.LoadParquet(args[0], limit)
			if err != nil {
				return fmt.Errorf("failed to load results: %w", err)
			}

			fmt.Printf("Loaded %d rows from %s\n\n", len(rows), args[0])

			reader := bufio.NewReader(os.Stdin)
			for i, row := range rows {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				default:
				}

				printRow(i+1, len(rows), row, showOCR)

				if interactive && i < len(rows)-1 {
					fmt.Print("Press Enter for the next row (q to quit): ")
					line, _ := reader.ReadString('\n')
					if strings.TrimSpace(strings.ToLower(line)) == "q" {
						break
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of rows to inspect (0 for all)")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Pause after each row (press Enter to continue)")
	cmd.Flags().BoolVar(&showOCR, "ocr", true, "Show OCR text")

	return cmd
}

func printRow(n, total int, row report.Row, showOCR bool) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Row %d of %d: %s (%dx%d)\n", n, total, row.ID, row.Width, row.Height)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Source:      %s\n", truncate(row.Src, 100))
	if row.ExistingAlt != "" {
		fmt.Printf("Current alt: %s\n", row.ExistingAlt)
	}
	fmt.Printf("Short:       %s\n", row.ShortCaption)
	fmt.Printf("Long:        %s\n", row.LongDescription)
	fmt.Printf("Confidence:  %.2f (%s, %s)\n", row.Confidence, row.Provenance, row.Model)
	if row.CORSLimited {
		fmt.Println("Note:        cross-origin image, described without pixel access")
	}
	if showOCR && row.OCRText != "" {
		fmt.Printf("OCR (%.0f%%): %s\n", row.OCRConfidence*100, row.OCRText)
	}
	if row.Error != "" {
		fmt.Printf("Error:       %s\n", row.Error)
	}
	fmt.Println()
}
