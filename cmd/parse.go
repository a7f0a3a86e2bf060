package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"wirelens/internal/logger"
	"wirelens/internal/parser"
	"wirelens/pkg/models"
)

var parseCmd = &cobra.Command{
	Use:   "parse [text-file|-]",
	Short: "Extract the field pair from already recognised text",
	Long: `Run the text parser on a text file, or on stdin when no file or "-" is given.
No image processing or Cloud Vision call is involved.`,
	Example: `  # Parse saved OCR output
  wirelens ocr guest.jpg -o guest.txt
  wirelens parse guest.txt

  # Parse from stdin and list every candidate
  printf 'WiFi droidconuk\nPassword NOugatyNiceness\n' | wirelens parse --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

// ParseOutput represents the JSON output of the parse command
type ParseOutput struct {
	Best       models.TextParserResponse   `json:"best"`
	Candidates []models.TextParserResponse `json:"candidates,omitempty"`
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().Bool("all", false, "List every candidate pair, not just the best one")
	parseCmd.Flags().Bool("json", false, "Output as JSON")
}

func runParse(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("parse")

	showAll, _ := cmd.Flags().GetBool("all")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	var (
		text []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		text, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
	} else {
		text, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read text: %w", err)
	}

	p := parser.NewSimpleTextParser()
	resp := models.OCRResponse{Text: string(text), Engine: models.EngineText}

	limit := 1
	if showAll {
		limit = 0
	}
	candidates := p.All(resp, limit)
	if len(candidates) == 0 {
		return handleScanError(parser.ErrNoMatch, log)
	}

	log.Debug().
		Int("candidates", len(candidates)).
		Msg("Parsed text")

	var out bytes.Buffer
	if jsonOutput {
		output := ParseOutput{Best: candidates[0]}
		if showAll {
			output.Candidates = candidates
		}
		data, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		out.Write(data)
		out.WriteString("\n")
	} else {
		for i, c := range candidates {
			if showAll {
				fmt.Fprintf(&out, "%d. ", i+1)
			}
			fmt.Fprintf(&out, "%s\t%s\n", c.FirstName, c.SurnameOrHandle)
		}
	}

	_, err = cmd.OutOrStdout().Write(out.Bytes())
	return err
}
