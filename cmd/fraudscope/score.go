package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hed1ad/fraudscope/pkg/io/csv"
	"github.com/hed1ad/fraudscope/pkg/report"
	"github.com/hed1ad/fraudscope/pkg/scoring"
	"github.com/hed1ad/fraudscope/pkg/txn"
)

func newScoreCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a sample and print fraud statistics with precision and recall",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, stats, err := a.run(cmd.Context(), a.cfg.Contamination)
			if err != nil {
				return err
			}

			summary, err := summarize(table, stats)
			if err != nil {
				return err
			}
			if asJSON {
				return report.WriteJSON(a.stdout, summary)
			}
			return report.WriteText(a.stdout, summary)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write scored transactions at or above --min-risk as CSV",
		Long: "Write scored transactions as CSV with PredictedFraud and RiskScore columns.\n" +
			"With --min-risk the file lists only suspicious activity report candidates.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, _, err := a.run(cmd.Context(), a.cfg.Contamination)
			if err != nil {
				return err
			}

			minRisk := a.cfg.MinRisk
			flagged := table.Filter(func(r txn.Record) bool { return r.RiskScore >= minRisk })

			if output == "" || output == "-" {
				return csv.NewWriter(a.stdout, flagged.Schema).WriteAll(flagged)
			}

			f, err := os.Create(output)
			if err != nil {
				return errors.Wrapf(err, "failed to create export file: %s", output)
			}
			w := csv.NewWriter(f, flagged.Schema)
			if err := w.WriteAll(flagged); err != nil {
				w.Close()
				return errors.Wrapf(err, "failed to write export file: %s", output)
			}
			if err := w.Close(); err != nil {
				return errors.Wrapf(err, "failed to close export file: %s", output)
			}

			a.log.WithFields(logrus.Fields{
				"path":     output,
				"rows":     flagged.Len(),
				"min_risk": minRisk,
			}).Info("export written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default stdout)")
	cmd.Flags().Int("min-risk", 0, "Only export transactions with at least this risk score")
	return cmd
}

func newTopCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the highest-risk transactions of a sample",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, _, err := a.run(cmd.Context(), a.cfg.Contamination)
			if err != nil {
				return err
			}
			return report.WriteTop(a.stdout, report.TopRisk(table, limit))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of transactions to list")
	return cmd
}

func newSweepCmd(a *app) *cobra.Command {
	var values string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Score one sample under several contamination priors",
		Long: "Score the same sample once per contamination value and compare the outcomes.\n" +
			"The sample is loaded once and served from the cache afterwards.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			priors, err := parsePriors(values)
			if err != nil {
				return err
			}

			for _, c := range priors {
				table, stats, err := a.run(cmd.Context(), c)
				if err != nil {
					return err
				}
				summary, err := summarize(table, stats)
				if err != nil {
					return err
				}

				if _, err := fmt.Fprintf(a.stdout, "\ncontamination %s\n", strconv.FormatFloat(c, 'g', -1, 64)); err != nil {
					return err
				}
				if err := report.WriteText(a.stdout, summary); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&values, "values", "0.001,0.002,0.005,0.01", "Comma-separated contamination values")
	return cmd
}

func summarize(table *txn.Table, stats scoring.Stats) (report.Summary, error) {
	q, err := scoring.ComputeQuality(table)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Summary{Stats: stats, Quality: q}, nil
}

func parsePriors(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid contamination %q", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("no contamination values given")
	}
	return out, nil
}
