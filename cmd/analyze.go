package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/describer/internal/discovery"
	"github.com/lehigh-university-libraries/describer/internal/models"
	"github.com/lehigh-university-libraries/describer/internal/report"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var baseURL string
	var outputDir string
	var parquetPath string
	var all bool

	cmd := &cobra.Command{
		Use:   "analyze <url|file>",
		Short: "Generate descriptions for every image on a page that needs one",
		Long: `Analyze scans a page, then runs OCR and captioning for each image that has
no alt text or only generic alt text. Images are processed one at a time.

A YAML report is written to the output directory and results can also be
exported to Parquet.`,
		Example: `  # Describe the images of a page
  describer analyze https://example.com/article

  # Include images that already have alt text and export to Parquet
  describer analyze ./article.html --base-url https://example.com/ --all --parquet results.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			page, err := p.OpenPage(ctx, args[0], baseURL)
			if err != nil {
				return err
			}

			var images []models.ImageRecord
			for _, img := range discovery.NewScanner(page).ScanPage() {
				if all || img.NeedsDescription {
					images = append(images, img)
				}
			}
			if len(images) == 0 {
				fmt.Println("No images need a description")
				return nil
			}

			bar := progressbar.NewOptions(len(images),
				progressbar.OptionSetWidth(50),
				progressbar.OptionSetDescription("Describing images"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionSetRenderBlankState(true),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprint(os.Stderr, "\n")
				}),
			)

			results, runErr := p.Bulk.Run(ctx, images, func(progress models.BulkProgress) {
				_ = bar.Set(progress.Completed)
			})
			_ = bar.Finish()
			if runErr != nil {
				slog.Warn("Analysis stopped early", "completed", len(results), "total", len(images), "error", runErr)
			}

			r := report.Build(args[0], p.Bulk.RunID(), p.ProviderNames(), results)
			path, err := report.SaveYAML(outputDir, r)
			if err != nil {
				return err
			}
			absPath, _ := filepath.Abs(path)
			fmt.Printf("\n✅ Report saved to: %s\n", absPath)
			fmt.Printf("   %d images, %d errors, %d CORS-limited\n", r.Summary.Total, r.Summary.Errors, r.Summary.CORSLimited)

			if parquetPath != "" {
				if err := report.WriteParquet(parquetPath, results); err != nil {
					return err
				}
				fmt.Printf("   Parquet export: %s\n", parquetPath)
			}

			return runErr
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Page address used to resolve images and their origin")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "reports", "Directory for the YAML report")
	cmd.Flags().StringVar(&parquetPath, "parquet", "", "Also export results to this Parquet file")
	cmd.Flags().BoolVar(&all, "all", false, "Include images whose alt text is already meaningful")

	return cmd
}
