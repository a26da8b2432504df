package cli

import (
	"github.com/spf13/cobra"

	errs "github.com/matzehuels/fibertree/pkg/errors"
	"github.com/matzehuels/fibertree/pkg/fibertree"
)

// randomCommand creates the random command.
func (c *CLI) randomCommand() *cobra.Command {
	var (
		spec   = RandomSpec{Interval: 10}
		output string
	)

	cmd := &cobra.Command{
		Use:   "random [SPEC.toml]",
		Short: "Generate a random sparse tensor",
		Long: `Generate a random sparse tensor.

The tensor is described either by flags or by a TOML file:

  name = "A"
  rank_ids = ["M", "K"]
  shape = [16, 16]
  density = [0.9, 0.3]
  interval = 10
  seed = 7

Each rank keeps a coordinate with the probability given by its density.
Leaf values are drawn from 1..interval. Equal seeds give equal tensors.`,
		Example: `  fibertree random --rank-ids M,K --shape 8,8 --density 1,0.25 --seed 3
  fibertree random a.toml -o a.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				loaded, err := readRandomSpec(args[0])
				if err != nil {
					return err
				}
				spec = mergeRandomSpec(loaded, spec, cmd)
			}
			if err := spec.validate(); err != nil {
				return err
			}
			c.Logger.Debug("generating random tensor", "spec", spec.String())

			t, err := fibertree.TensorFromRandom(spec.RankIDs, spec.Shape, spec.Density, spec.Interval, spec.Seed,
				fibertree.WithName(spec.Name))
			if err != nil {
				return errs.Wrap(errs.ErrCodeInvalidInput, err, "random tensor")
			}
			return writeTensor(cmd, t, output)
		},
	}

	cmd.Flags().StringVar(&spec.Name, "name", "", "tensor name")
	cmd.Flags().StringSliceVar(&spec.RankIDs, "rank-ids", nil, "rank ids, top rank first")
	cmd.Flags().IntSliceVar(&spec.Shape, "shape", nil, "shape of each rank")
	cmd.Flags().Float64SliceVar(&spec.Density, "density", nil, "density of each rank (0..1)")
	cmd.Flags().IntVar(&spec.Interval, "interval", spec.Interval, "leaf values are drawn from 1..interval")
	cmd.Flags().Int64Var(&spec.Seed, "seed", 0, "random seed")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// mergeRandomSpec applies the flags the user set on top of a spec file.
func mergeRandomSpec(file, flags RandomSpec, cmd *cobra.Command) RandomSpec {
	changed := cmd.Flags().Changed
	if changed("name") {
		file.Name = flags.Name
	}
	if changed("rank-ids") {
		file.RankIDs = flags.RankIDs
	}
	if changed("shape") {
		file.Shape = flags.Shape
	}
	if changed("density") {
		file.Density = flags.Density
	}
	if changed("interval") {
		file.Interval = flags.Interval
	}
	if changed("seed") {
		file.Seed = flags.Seed
	}
	return file
}
