package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

type scoreFlags struct {
	answers string
	country string
	catalog string
}

func newScoreCmd() *cobra.Command {
	f := &scoreFlags{}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score an answers file and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.answers, "answers", "", "Answers file (.yaml, .yml or .json)")
	flags.StringVar(&f.country, "country", string(survey.DefaultCountry), "Country code for the economic coefficient, case-sensitive (US, CN, JP, ...)")
	flags.StringVar(&f.catalog, "catalog", "", "Question catalog (default: built-in)")
	_ = cmd.MarkFlagRequired("answers")

	return cmd
}

func runScore(cmd *cobra.Command, f *scoreFlags) error {
	catalog, err := loadCatalog(f.catalog)
	if err != nil {
		return exitError(2, "failed to load catalog: %v", err)
	}

	answers, err := loadAnswers(f.answers)
	if err != nil {
		return exitError(2, "failed to load answers: %v", err)
	}

	country := survey.CountryCode(f.country)
	if !catalog.HasCountry(country) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: unknown country %q, using coefficient 1.0\n", country)
	}

	result := scoring.NewEngine(catalog).Calculate(answers, country)
	return writeJSON(cmd, result)
}

func loadCatalog(path string) (*survey.Catalog, error) {
	if path == "" {
		return survey.Default(), nil
	}
	return survey.Load(path)
}

// loadAnswers reads a map of question id to a value or list of values.
func loadAnswers(path string) (scoring.Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	answers := scoring.Answers{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &answers)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &answers)
	default:
		return nil, fmt.Errorf("unsupported answers format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return answers, nil
}

func newValidateCmd() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a question catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(catalogPath)
			if err != nil {
				return exitError(1, "invalid catalog: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog version %d is valid: %d questions, %d countries\n",
				catalog.Version, catalog.Len(), len(catalog.Countries()))
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Question catalog (default: built-in)")

	return cmd
}

func newLevelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "Print the happiness level thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd, scoring.Levels())
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
