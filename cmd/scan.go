package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/lehigh-university-libraries/describer/internal/discovery"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var baseURL string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan <url|file>",
		Short: "List the images on a page that are worth describing",
		Long: `Scan parses a page and lists every image that passes the eligibility
filter: at least 50x50 pixels, not a small inline icon, not hidden, and not
far outside the viewport.`,
		Example: `  # Scan a live page
  describer scan https://example.com/article

  # Scan a saved page, resolving images against its original address
  describer scan ./article.html --base-url https://example.com/article --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			page, err := p.OpenPage(cmd.Context(), args[0], baseURL)
			if err != nil {
				return err
			}

			images := discovery.NewScanner(page).ScanPage()

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(images)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSIZE\tVISIBLE\tNEEDS DESCRIPTION\tALT\tSRC")
			for _, img := range images {
				fmt.Fprintf(tw, "%s\t%dx%d\t%t\t%t\t%s\t%s\n",
					img.ID, img.NaturalWidth, img.NaturalHeight, img.Visible, img.NeedsDescription, img.Alt, truncate(img.Src, 80))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Page address used to resolve images and their origin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print image records as JSON")

	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
