// Package cli implements the momentum command line tool, which runs the
// descent methods on the built-in objectives and prints the trace.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/momentum/internal/config"
	"github.com/copyleftdev/momentum/internal/errors"
	"github.com/copyleftdev/momentum/internal/logging"
	"github.com/copyleftdev/momentum/internal/optimization"
	"github.com/copyleftdev/momentum/internal/optimization/firstorder"
	"github.com/copyleftdev/momentum/internal/optimization/objectives"
	"github.com/copyleftdev/momentum/internal/server"
)

// Output formats
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

type globalOptions struct {
	logLevel  string
	logFormat string
	logger    *logging.Logger
}

type runOptions struct {
	method    string
	objective string
	x0        []float64
	numeric   bool
	output    string
	settings  optimization.Settings
}

// Result is what `momentum run` prints.
type Result struct {
	Method              string                `json:"method" yaml:"method"`
	Objective           string                `json:"objective" yaml:"objective"`
	Settings            optimization.Settings `json:"settings" yaml:"settings"`
	Outcome             optimization.Status   `json:"outcome" yaml:"outcome"`
	FinalValue          server.Float          `json:"final_value" yaml:"final_value"`
	GradientEvaluations int                   `json:"gradient_evaluations" yaml:"gradient_evaluations"`
	Trace               *server.TraceResponse `json:"trace" yaml:"trace"`
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:           "momentum",
		Short:         "Fixed-step gradient descent, Heavy-Ball and Nesterov",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.NewLogger(&logging.Config{
				Level:  g.logLevel,
				Format: g.logFormat,
				Output: "stderr",
			})
			if err != nil {
				return err
			}
			g.logger = logger.WithField("command", cmd.Name())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format (text|json)")

	root.AddCommand(runCmd(g))
	root.AddCommand(methodsCmd())
	root.AddCommand(objectivesCmd())
	return root
}

func runCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Minimize an objective and print the trace",
		Long: `Minimize one of the built-in objectives from a starting point and print
every iterate with its gradient norm.

Examples:
  momentum run --objective rosenbrock --x0 -1.2,1 --method nesterov --alpha 5e-4 --beta 0.5
  momentum run --objective sphere --x0 3,4 --output yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyDefaults(cmd.Flags(), &o.settings); err != nil {
				return err
			}
			res, err := run(o, g.logger)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), o.output, res)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&o.method, "method", firstorder.NameGradientDescent,
		"Method ("+strings.Join(firstorder.Names(), "|")+")")
	fs.StringVar(&o.objective, "objective", "", "Objective to minimize, see `momentum objectives`")
	fs.Float64SliceVar(&o.x0, "x0", nil, "Starting point, comma separated")
	fs.BoolVar(&o.numeric, "numeric", false, "Estimate gradients by central differences")
	fs.StringVar(&o.output, "output", OutputTable, "Output format (table|json|yaml)")
	addSettingsFlags(fs, &o.settings)

	_ = cmd.MarkFlagRequired("objective")
	_ = cmd.MarkFlagRequired("x0")
	return cmd
}

func addSettingsFlags(fs *pflag.FlagSet, s *optimization.Settings) {
	fs.Float64Var(&s.Alpha, "alpha", 0, "Step size (default from OPT_DEFAULT_ALPHA)")
	fs.Float64Var(&s.Beta, "beta", 0, "Momentum coefficient (default from OPT_DEFAULT_BETA)")
	fs.Float64Var(&s.Epsilon, "epsilon", 0, "Gradient norm tolerance (default from OPT_DEFAULT_EPSILON)")
	fs.IntVar(&s.MaxIterations, "max-iter", 0, "Iteration budget (default from OPT_DEFAULT_MAX_ITER)")
}

// applyDefaults fills every settings flag the user did not set from the
// environment configuration.
func applyDefaults(fs *pflag.FlagSet, s *optimization.Settings) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defaults := cfg.DefaultSettings()

	if !fs.Changed("alpha") {
		s.Alpha = defaults.Alpha
	}
	if !fs.Changed("beta") {
		s.Beta = defaults.Beta
	}
	if !fs.Changed("epsilon") {
		s.Epsilon = defaults.Epsilon
	}
	if !fs.Changed("max-iter") {
		s.MaxIterations = defaults.MaxIterations
	}
	return nil
}

func run(o *runOptions, logger *logging.Logger) (*Result, error) {
	switch o.output {
	case OutputTable, OutputJSON, OutputYAML:
	default:
		return nil, errors.Errorf("unknown output format %q", o.output).WithComponent("cli")
	}

	method, err := firstorder.Lookup(o.method)
	if err != nil {
		return nil, err
	}
	objective, err := objectives.Lookup(o.objective)
	if err != nil {
		return nil, err
	}
	oracle, err := objective.Oracle(len(o.x0), o.numeric)
	if err != nil {
		return nil, err
	}
	if err := o.settings.Validate(); err != nil {
		return nil, err
	}

	logger = logger.WithFields(map[string]interface{}{
		"method":    method.Name(),
		"objective": objective.Name,
		"dimension": len(o.x0),
	})
	logger.Debug("Starting run", map[string]interface{}{
		"alpha":    o.settings.Alpha,
		"beta":     o.settings.Beta,
		"epsilon":  o.settings.Epsilon,
		"max_iter": o.settings.MaxIterations,
	})

	counter := optimization.NewCountingOracle(oracle)
	var trace optimization.Trace
	if err := errors.Safely(func() {
		trace = method.Minimize(optimization.Point(o.x0), counter, o.settings)
	}); err != nil {
		return nil, errors.Wrap(err, "run failed").WithOperation("minimize").WithComponent(method.Name())
	}

	outcome := optimization.Classify(trace, o.settings)
	x, norm := trace.Final()
	value := counter.Evaluate(x)

	logger.Info("Run finished", map[string]interface{}{
		"outcome":    outcome,
		"iterations": trace.Iterations,
		"final_norm": norm,
	})
	if outcome == optimization.StatusNonFinite {
		logger.Warn("Iterates left the finite range; reduce alpha")
	}

	return &Result{
		Method:              method.Name(),
		Objective:           objective.Name,
		Settings:            o.settings,
		Outcome:             outcome,
		FinalValue:          server.Float(value),
		GradientEvaluations: counter.Gradients(),
		Trace:               server.NewTraceResponse(trace),
	}, nil
}

func render(w io.Writer, format string, res *Result) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	default:
		return renderTable(w, res)
	}
}

func renderTable(w io.Writer, res *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	withLookahead := len(res.Trace.Lookahead) > 0

	if withLookahead {
		fmt.Fprintln(tw, "K\tNORM\tX\tY")
	} else {
		fmt.Fprintln(tw, "K\tNORM\tX")
	}
	for k, x := range res.Trace.Points {
		fmt.Fprintf(tw, "%d\t%.6g\t%s", k, float64(res.Trace.Norms[k]), formatPoint(x))
		if withLookahead {
			fmt.Fprintf(tw, "\t%s", formatPoint(res.Trace.Lookahead[k]))
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nmethod=%s objective=%s outcome=%s iterations=%d gradient_evaluations=%d final_value=%.6g\n",
		res.Method, res.Objective, res.Outcome, res.Trace.Iterations, res.GradientEvaluations, float64(res.FinalValue))
	return err
}

func formatPoint(p []server.Float) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = fmt.Sprintf("%.6g", float64(v))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func methodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the available descent methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMOMENTUM")
			for _, name := range firstorder.Names() {
				fmt.Fprintf(tw, "%s\t%t\n", name, firstorder.UsesMomentum(name))
			}
			return tw.Flush()
		},
	}
}

func objectivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objectives",
		Short: "List the built-in objectives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDIMENSION\tMINIMUM\tDESCRIPTION")
			for _, o := range objectives.All() {
				fmt.Fprintf(tw, "%s\t%s\t%g\t%s\n", o.Name, dimensionOf(o), o.Minimum, o.Description)
			}
			return tw.Flush()
		},
	}
}

func dimensionOf(o objectives.Objective) string {
	switch {
	case o.Dim > 0:
		return fmt.Sprint(o.Dim)
	case o.Multiple > 0:
		return fmt.Sprintf("multiple of %d", o.Multiple)
	default:
		return fmt.Sprintf(">= %d", o.MinDim)
	}
}

// exitCode maps an error returned by Execute to a process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := optimization.IsOptimizationError(err); ok {
		return 2
	}
	return 1
}

// Main runs the CLI and returns the process exit status.
func Main() int {
	err := Execute(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "momentum:", err)
	}
	return exitCode(err)
}
