package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/fibertree/pkg/pipeline"
)

// dotFlags holds flags for the dot command.
type dotFlags struct {
	format     string
	output     string
	hideValues bool
	rankDir    string
}

// dotCommand creates the dot command.
func (c *CLI) dotCommand() *cobra.Command {
	var flags dotFlags

	cmd := &cobra.Command{
		Use:   "dot FILE",
		Short: "Draw a tensor as a fibertree diagram",
		Long: `Draw a tensor as a fibertree diagram.

Every fiber becomes a record node and every rank one row of the diagram.
Formats: dot (Graphviz source), svg and png. SVG and PNG are rendered with
an embedded Graphviz and cached by tensor content.`,
		Example: `  fibertree dot a.yaml > a.dot
  fibertree dot a.yaml -f svg -o a.svg
  fibertree dot a.yaml -f png --rankdir LR --hide-values -o a.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pipeline.ValidateFormat(flags.format); err != nil {
				return err
			}
			t, err := readTensor(cmd, args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			runner, err := c.newRunner(ctx)
			if err != nil {
				return err
			}
			defer runner.Close()

			tm := startTimer(c.Logger)
			data, cached, err := runner.Render(ctx, t, pipeline.RenderOptions{
				Format:     flags.format,
				HideValues: flags.hideValues,
				RankDir:    flags.rankDir,
			})
			if err != nil {
				return err
			}
			tm.done("rendered", "format", flags.format, "bytes", len(data), "cached", cached)
			return writeBytes(cmd.OutOrStdout(), data, flags.output)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", pipeline.FormatDOT, "output format: dot, svg, png")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&flags.hideValues, "hide-values", false, "draw leaf fibers with coordinates only")
	cmd.Flags().StringVar(&flags.rankDir, "rankdir", "TB", "Graphviz rank direction: TB, LR, BT, RL")

	return cmd
}
