package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/fibertree/pkg/errors"
	"github.com/matzehuels/fibertree/pkg/fibertree"
	ftio "github.com/matzehuels/fibertree/pkg/io"
	"github.com/matzehuels/fibertree/pkg/pipeline"
)

// stdinPath names standard input as a tensor file argument.
const stdinPath = "-"

// readTensor loads a YAML tensor from path, or from the command's input
// when path is "-".
func readTensor(cmd *cobra.Command, path string) (*fibertree.Tensor, error) {
	if path == stdinPath {
		return ftio.ReadYAML(cmd.InOrStdin())
	}
	return ftio.ImportYAML(path)
}

// writeTensor writes t as YAML to output, or to the command's output when
// output is empty.
func writeTensor(cmd *cobra.Command, t *fibertree.Tensor, output string) error {
	if output == "" {
		return ftio.WriteYAML(t, cmd.OutOrStdout())
	}
	if err := ftio.ExportYAML(t, output); err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "write %s", output)
	}
	printSuccess("Wrote %s", output)
	printDetail("%d values, ranks %v", t.CountValues(), t.RankIDs())
	return nil
}

// writeBytes writes data to output, or to w when output is empty.
func writeBytes(w io.Writer, data []byte, output string) error {
	if output == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "write %s", output)
	}
	printFile(output)
	return nil
}

// printCommand creates the print command.
func (c *CLI) printCommand() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "print FILE",
		Short: "Print a tensor as a fibertree",
		Long: `Print a tensor read from a YAML file ("-" for stdin).

The default form is the compact tree notation, e.g.
  T(M,K)/[(0 -> F/[(1 -> <5>) (3 -> <7>)]) (2 -> F/[(0 -> <2>)])]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readTensor(cmd, args[0])
			if err != nil {
				return err
			}
			if asYAML {
				return ftio.WriteYAML(t, cmd.OutOrStdout())
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return err
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the YAML document instead of the tree notation")
	return cmd
}

// statsCommand creates the stats command.
func (c *CLI) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats FILE",
		Short: "Show per-rank occupancy of a tensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readTensor(cmd, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			name := t.Name()
			if name == "" {
				name = args[0]
			}
			fmt.Fprintln(w, StyleTitle.Render(name))
			fmt.Fprintf(w, "%s %v\n", StyleDim.Render("ranks: "), t.RankIDs())
			fmt.Fprintf(w, "%s %v\n", StyleDim.Render("default:"), fibertree.Unbox(t.Default()))
			fmt.Fprintf(w, "%s %s\n", StyleDim.Render("values: "), StyleNumber.Render(fmt.Sprint(t.CountValues())))
			if t.Depth() > 0 {
				fmt.Fprintln(w, statsTable(t))
			}
			return nil
		},
	}
}

// transformFlags holds flags shared by the rank transformation commands.
type transformFlags struct {
	output string
}

func (f *transformFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default stdout)")
}

// runTransform reads the tensor at path, applies opts and writes
// the result.
func (c *CLI) runTransform(cmd *cobra.Command, path string, flags transformFlags, opts pipeline.TransformOptions) error {
	t, err := readTensor(cmd, path)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(nil, nil, c.Logger)
	out, err := runner.Transform(cmd.Context(), t, opts)
	if err != nil {
		return err
	}
	return writeTensor(cmd, out, flags.output)
}

// swizzleCommand creates the swizzle command.
func (c *CLI) swizzleCommand() *cobra.Command {
	var (
		flags transformFlags
		order []string
	)

	cmd := &cobra.Command{
		Use:   "swizzle FILE",
		Short: "Reorder the ranks of a tensor",
		Example: `  fibertree swizzle a.yaml --order K,M
  cat a.yaml | fibertree swizzle - --order K,M -o a_km.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTransform(cmd, args[0], flags, pipeline.TransformOptions{
				Kind:  pipeline.TransformSwizzle,
				Order: order,
			})
		},
	}

	cmd.Flags().StringSliceVar(&order, "order", nil, "new rank order, e.g. K,M (required)")
	_ = cmd.MarkFlagRequired("order")
	flags.register(cmd)
	return cmd
}

// swapCommand creates the swap command.
func (c *CLI) swapCommand() *cobra.Command {
	var (
		flags transformFlags
		depth int
	)

	cmd := &cobra.Command{
		Use:   "swap FILE",
		Short: "Swap the rank at --depth with the rank below it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTransform(cmd, args[0], flags, pipeline.TransformOptions{
				Kind:  pipeline.TransformSwap,
				Depth: depth,
			})
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "depth of the upper rank")
	flags.register(cmd)
	return cmd
}

// splitCommand creates the split command.
func (c *CLI) splitCommand() *cobra.Command {
	var (
		flags transformFlags
		opts  = pipeline.TransformOptions{Kind: pipeline.TransformSplit}
	)

	cmd := &cobra.Command{
		Use:   "split FILE",
		Short: "Split a rank into an upper and a lower rank",
		Long: `Split a rank into an upper and a lower rank.

Modes:
  uniform     upper coordinates every --step coordinates
  nonuniform  upper coordinates at --splits
  equal       --parts partitions with the same number of elements
  unequal     partitions with --sizes elements`,
		Example: `  fibertree split a.yaml --rank K --step 4
  fibertree split a.yaml --rank K --mode equal --parts 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTransform(cmd, args[0], flags, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Rank, "rank", "", "rank to split (required)")
	cmd.Flags().StringVar(&opts.Mode, "mode", pipeline.SplitUniform, "split mode: uniform, nonuniform, equal, unequal")
	cmd.Flags().IntVar(&opts.Step, "step", 0, "coordinate step (uniform)")
	cmd.Flags().IntVar(&opts.Partitions, "partitions", 0, "number of partitions (uniform)")
	cmd.Flags().BoolVar(&opts.Relative, "relative", false, "make lower coordinates relative to their partition (uniform)")
	cmd.Flags().IntSliceVar(&opts.Splits, "splits", nil, "partition start coordinates (nonuniform)")
	cmd.Flags().IntVar(&opts.Parts, "parts", 0, "number of partitions (equal)")
	cmd.Flags().IntSliceVar(&opts.Sizes, "sizes", nil, "partition sizes (unequal)")
	_ = cmd.MarkFlagRequired("rank")
	flags.register(cmd)
	return cmd
}

// flattenCommand creates the flatten command.
func (c *CLI) flattenCommand() *cobra.Command {
	var (
		flags transformFlags
		opts  = pipeline.TransformOptions{Kind: pipeline.TransformFlatten}
	)

	cmd := &cobra.Command{
		Use:   "flatten FILE",
		Short: "Merge adjacent ranks into one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTransform(cmd, args[0], flags, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "depth of the first merged rank")
	cmd.Flags().IntVar(&opts.Levels, "levels", 1, "number of ranks merged into the first")
	cmd.Flags().StringVar(&opts.Style, "style", "tuple", "coordinate style: tuple, pair, absolute")
	flags.register(cmd)
	return cmd
}

// unflattenCommand creates the unflatten command.
func (c *CLI) unflattenCommand() *cobra.Command {
	var (
		flags transformFlags
		opts  = pipeline.TransformOptions{Kind: pipeline.TransformUnflatten}
	)

	cmd := &cobra.Command{
		Use:   "unflatten FILE",
		Short: "Split a rank of tuple coordinates back into ranks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTransform(cmd, args[0], flags, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "depth of the flattened rank")
	cmd.Flags().IntVar(&opts.Levels, "levels", 1, "number of ranks to restore below it")
	flags.register(cmd)
	return cmd
}
