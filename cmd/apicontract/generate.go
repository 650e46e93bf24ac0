package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/torosent/apicontract/internal/config"
	"github.com/torosent/apicontract/internal/har"
	"github.com/torosent/apicontract/internal/openapi"
)

func newGenerateCommand(stdout io.Writer) *cobra.Command {
	var (
		docPath   string
		harPath   string
		harBase   string
		harHosts  []string
		harMethod []string
		outPath   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a case file from an OpenAPI document or a HAR recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cases []config.CaseConfig
				err   error
			)
			switch {
			case docPath != "" && harPath != "":
				return fmt.Errorf("--openapi and --har are mutually exclusive")
			case docPath != "":
				cases, err = openapi.Generate(docPath)
			case harPath != "":
				cases, err = fromHAR(harPath, harBase, harHosts, harMethod)
			default:
				return fmt.Errorf("one of --openapi or --har is required")
			}
			if err != nil {
				return err
			}
			if err := config.WriteCases(outPath, cases); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(stdout, "Generated %d cases in %s\n", len(cases), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&docPath, "openapi", "", "OpenAPI 3 document (YAML or JSON)")
	cmd.Flags().StringVar(&harPath, "har", "", "HAR recording to convert")
	cmd.Flags().StringVar(&harBase, "har-base-url", "", "Keep only recorded requests under this URL and make paths relative to it")
	cmd.Flags().StringSliceVar(&harHosts, "har-host", nil, "Keep only recorded requests to these hosts")
	cmd.Flags().StringSliceVar(&harMethod, "har-method", nil, "Keep only recorded requests with these methods")
	cmd.Flags().StringVarP(&outPath, "out", "o", "cases.yaml", "Case file to write")
	return cmd
}

func fromHAR(path, baseURL string, hosts, methods []string) ([]config.CaseConfig, error) {
	recording, err := har.ParseFile(path)
	if err != nil {
		return nil, err
	}
	opts := har.DefaultOptions()
	opts.BaseURL = strings.TrimSpace(baseURL)
	opts.IncludeHosts = hosts
	opts.IncludeMethods = methods
	return har.Convert(recording, opts)
}
