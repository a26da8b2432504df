package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/fibertree/pkg/fibertree"
	"github.com/matzehuels/fibertree/pkg/pipeline"
)

// runFlags holds flags for the run command.
type runFlags struct {
	output   string
	trace    []string
	traceDir string
	refresh  bool
	name     string
	quiet    bool
}

// runCommand creates the run command.
func (c *CLI) runCommand() *cobra.Command {
	var flags runFlags

	ops := make([]string, 0, len(pipeline.ValidOps))
	for op := range pipeline.ValidOps {
		ops = append(ops, op)
	}
	slices.Sort(ops)

	cmd := &cobra.Command{
		Use:   "run OP A.yaml B.yaml",
		Short: "Run a kernel over two tensors and report its metrics",
		Long: fmt.Sprintf(`Run a kernel over two tensors and report its metrics.

Kernels: %s

The output tensor is written as YAML to stdout or --output. The metrics
table goes to stderr. With --trace the listed ranks record every access
to CSV files under --trace-dir (default: <trace dir>/<run id>).

Untraced runs are cached by the content of their inputs.`, strings.Join(ops, ", ")),
		Example: `  fibertree run matmul a.yaml b.yaml -o z.yaml
  fibertree run intersect a.yaml b.yaml --trace K --trace-dir traces/k`,
		Args:      cobra.ExactArgs(3),
		ValidArgs: ops,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRun(cmd, args[0], args[1:], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringSliceVar(&flags.trace, "trace", nil, "rank ids whose accesses are traced")
	cmd.Flags().StringVar(&flags.traceDir, "trace-dir", "", "directory for trace files")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "recompute even when cached")
	cmd.Flags().StringVar(&flags.name, "name", "Z", "name of the output tensor")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "do not print the metrics table")

	return cmd
}

func (c *CLI) runRun(cmd *cobra.Command, op string, paths []string, flags runFlags) error {
	ctx := withLogger(cmd.Context(), c.Logger.WithPrefix(op))

	inputs := make([]*fibertree.Tensor, len(paths))
	for i, path := range paths {
		t, err := readTensor(cmd, path)
		if err != nil {
			return err
		}
		inputs[i] = t
	}

	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	var sp *spinner
	if !flags.quiet {
		sp = startSpinner(ctx, "Running "+op)
	}
	res, err := runner.Execute(ctx, pipeline.Options{
		Op:        op,
		Inputs:    inputs,
		Trace:     flags.trace,
		TraceDir:  flags.traceDir,
		TraceRoot: c.Config.Trace.Dir,
		Refresh:   flags.refresh,
		Name:      flags.name,
		Logger:    loggerFromContext(ctx),
	})
	if err != nil {
		switch {
		case sp == nil:
		case sp.interrupted():
			sp.fail(op + " interrupted")
		default:
			sp.fail(op + " failed")
		}
		return err
	}
	if sp != nil {
		sp.succeed("Ran " + op)
	}

	if err := writeTensor(cmd, res.Output, flags.output); err != nil {
		return err
	}
	if flags.quiet {
		return nil
	}

	printKeyValue("run", res.RunID)
	printRunStats(res.Stats.Values, res.CacheHit)
	if len(res.Metrics) > 0 {
		fmt.Fprintln(statusOut, metricsTable(res.Metrics))
	}
	if res.TraceDir != "" {
		printInfo("Traces")
		for _, f := range traceFiles(res.TraceDir) {
			printFile(f)
		}
	}
	if flags.output != "" {
		printNextStep("Draw the output", fmt.Sprintf("fibertree dot %s -f svg -o %s.svg", flags.output, strings.TrimSuffix(flags.output, filepath.Ext(flags.output))))
	}
	return nil
}

// traceFiles lists the CSV files of a trace directory.
func traceFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".csv" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files
}
