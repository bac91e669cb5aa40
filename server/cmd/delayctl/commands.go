package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/delaycast/delaycast/pkg/types"
	"github.com/delaycast/delaycast/server/internal/client"
	"github.com/delaycast/delaycast/server/internal/dataset"
	"github.com/delaycast/delaycast/server/internal/model"
	"github.com/delaycast/delaycast/server/internal/predict"
)

// globalFlags are shared by every subcommand that talks to a server.
type globalFlags struct {
	endpoint string
	apiKey   string
	header   string
	timeout  time.Duration
	asJSON   bool
}

func (g *globalFlags) client() (*client.Client, error) {
	return client.New(client.Options{
		Endpoint: g.endpoint,
		APIKey:   g.apiKey,
		Header:   g.header,
		Timeout:  g.timeout,
	})
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "delayctl",
		Short:         "Train and query the delaycast flight delay model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.endpoint, "endpoint", "http://localhost:8080", "delaycast server base URL")
	pf.StringVar(&g.apiKey, "api-key", os.Getenv("DELAYCAST_API_KEY"), "API key (default $DELAYCAST_API_KEY)")
	pf.StringVar(&g.header, "api-key-header", "x-api-key", "header carrying the API key")
	pf.DurationVar(&g.timeout, "timeout", 10*time.Second, "request timeout")
	pf.BoolVar(&g.asJSON, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newTrainCmd(g),
		newPredictCmd(g),
		newModelCmd(g),
		newStatusCmd(g),
		newHealthCmd(g),
	)
	return root
}

// --- train ------------------------------------------------------------------

func newTrainCmd(g *globalFlags) *cobra.Command {
	var (
		data    string
		target  string
		holdout float64
		opts    = model.DefaultOptions()
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit a model on a CSV dataset locally and print the evaluation report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, err := dataset.Load(data, dataset.Options{TargetColumn: target})
			if err != nil {
				return err
			}
			svc := predict.New(predict.Options{Model: opts, HoldoutFraction: holdout})
			rep, err := svc.Train(batch, target)
			if err != nil {
				return err
			}
			if g.asJSON {
				return writeJSON(cmd.OutOrStdout(), svc.ModelInfo())
			}
			printReport(cmd.OutOrStdout(), rep, svc.ModelInfo())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&data, "data", "data/data.csv", "path to the flight CSV")
	f.StringVar(&target, "target", dataset.DefaultTargetColumn, "label column; derived from timestamps when absent")
	f.Float64Var(&holdout, "holdout", 0.33, "fraction of rows held out for evaluation (0 disables)")
	f.IntVar(&opts.MaxIter, "max-iter", opts.MaxIter, "maximum optimizer iterations")
	f.Float64Var(&opts.L2, "l2", opts.L2, "L2 penalty on the coefficients")
	f.Int64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	f.StringVar(&opts.ClassWeight, "class-weight", opts.ClassWeight, "balanced or none")
	return cmd
}

func printReport(w io.Writer, rep *predict.TrainReport, info predict.ModelInfo) {
	fmt.Fprintf(w, "samples:    %d\n", rep.Samples)
	fmt.Fprintf(w, "delays:     %d (%.1f%%)\n", rep.Delays, rep.DelayRate)
	fmt.Fprintf(w, "operators:  %d\n", rep.Operators)
	fmt.Fprintf(w, "iterations: %d (%s)\n", info.Iterations, info.Status)
	fmt.Fprintf(w, "loss:       %.6f\n", info.Loss)
	fmt.Fprintf(w, "weights:    %.4f / %.4f\n", info.ClassWeights[0], info.ClassWeights[1])

	if h := rep.Holdout; h != nil {
		fmt.Fprintf(w, "\nholdout (%d rows, accuracy %.3f)\n", h.Samples, h.Accuracy)
		fmt.Fprintf(w, "%-6s %9s %9s %9s %9s\n", "class", "precision", "recall", "f1", "support")
		for c, s := range h.Classes {
			fmt.Fprintf(w, "%-6d %9.3f %9.3f %9.3f %9d\n", c, s.Precision, s.Recall, s.F1, s.Support)
		}
	}

	fmt.Fprintln(w, "\ncoefficients")
	for i, col := range info.Columns {
		fmt.Fprintf(w, "  %-28s %+.4f\n", col, info.Coefficients[i])
	}
	fmt.Fprintf(w, "  %-28s %+.4f\n", "intercept", info.Intercept)
}

// --- predict ----------------------------------------------------------------

func newPredictCmd(g *globalFlags) *cobra.Command {
	var f types.Flight
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Ask the server whether a flight will be delayed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			labels, err := c.Predict(cmd.Context(), []types.Flight{f})
			if err != nil {
				return err
			}
			if g.asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string][]int{"predict": labels})
			}
			verdict := "on time"
			if labels[0] == 1 {
				verdict = "delayed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s month %d: %s\n", f.Operator, f.FlightType, f.Month, verdict)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.Operator, "opera", "", "airline operator (OPERA)")
	fl.StringVar(&f.FlightType, "tipovuelo", types.FlightTypeDomestic, "N (domestic) or I (international)")
	fl.IntVar(&f.Month, "mes", 0, "month of the scheduled departure, 1..12")
	cmd.MarkFlagRequired("opera") //nolint:errcheck
	cmd.MarkFlagRequired("mes")   //nolint:errcheck
	return cmd
}

// --- model ------------------------------------------------------------------

func newModelCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Show the model the server is serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			info, err := c.Model(cmd.Context())
			if err != nil {
				return err
			}
			if g.asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			w := cmd.OutOrStdout()
			if !info.Trained {
				fmt.Fprintln(w, "model: not trained")
				return nil
			}
			fmt.Fprintf(w, "model:     trained %s\n", info.TrainedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "schema:    %s (%d columns)\n", info.SchemaVersion, len(info.Columns))
			fmt.Fprintf(w, "operators: %d\n", len(info.Operators))
			if info.Report != nil {
				fmt.Fprintf(w, "samples:   %d (%.1f%% delayed)\n", info.Report.Samples, info.Report.DelayRate)
			}
			return nil
		},
	}
}

// --- status -----------------------------------------------------------------

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarise the server's /metrics counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			if g.asJSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printStatus(w io.Writer, st client.Status) {
	fmt.Fprintf(w, "trained:    %t\n", st.Trained)
	fmt.Fprintf(w, "flights:    %.0f (%.1f%% delayed)\n", st.Flights, st.DelayRate())
	fmt.Fprintf(w, "cache hits: %.0f\n", st.CacheHits)
	fmt.Fprintf(w, "fallbacks:  %.0f\n", st.Fallbacks)
	fmt.Fprintln(w, "requests:")
	for _, o := range st.Outcomes() {
		fmt.Fprintf(w, "  %-10s %.0f\n", o, st.Requests[o])
	}
	if len(st.Rejections) > 0 {
		fields := make([]string, 0, len(st.Rejections))
		for k := range st.Rejections {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		fmt.Fprintln(w, "rejected fields:")
		for _, f := range fields {
			fmt.Fprintf(w, "  %-10s %.0f\n", f, st.Rejections[f])
		}
	}
}

// --- health -----------------------------------------------------------------

func newHealthCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			if err := c.Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
