package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dvloznov/card-advisor/internal/app"
	"github.com/dvloznov/card-advisor/internal/config"
	"github.com/dvloznov/card-advisor/internal/crawler"
	"github.com/dvloznov/card-advisor/internal/logger"
	"github.com/dvloznov/card-advisor/internal/oracle"
	"github.com/dvloznov/card-advisor/internal/pipeline"
	"github.com/dvloznov/card-advisor/internal/recommend"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.New(), os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries what every subcommand needs once flags are parsed.
type cli struct {
	v   *viper.Viper
	out io.Writer
	log zerolog.Logger
}

func newRootCmd(v *viper.Viper, out io.Writer) *cobra.Command {
	c := &cli{v: v, out: out}

	root := &cobra.Command{
		Use:           "card-advisor",
		Short:         "Statement analysis and card recommendation tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.log = logger.NewWithOptions(logger.Options{
				Level:   v.GetString("log_level"),
				JSON:    v.GetBool("log_json"),
				Service: "card-advisor-cli",
			})
			return nil
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.String("log-level", v.GetString("log_level"), "log level (debug, info, warn, error)")
	pf.BoolP("json", "j", v.GetBool("log_json"), "json format for logging")
	pf.String("store", v.GetString("store_backend"), "entity store backend (memory, bigquery, postgres)")
	pf.String("object-store", v.GetString("object_store"), "statement file store (local, gcs, s3)")
	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log_json", pf.Lookup("json"))
	_ = v.BindPFlag("store_backend", pf.Lookup("store"))
	_ = v.BindPFlag("object_store", pf.Lookup("object-store"))

	root.AddCommand(
		c.analyzeDirCmd(),
		c.analyzeCmd(),
		c.reanalyzeCmd(),
		c.recommendCmd(),
		c.authenticateCmd(),
	)
	return root
}

// services loads the configuration and builds the service graph.
func (c *cli) services(ctx context.Context) (*app.Services, error) {
	cfg, err := config.Load(c.v)
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, c.log)
}

func (c *cli) analyzeDirCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "analyze-dir <directory>",
		Short: "Extract card catalog entries from every PDF in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := c.services(ctx)
			if err != nil {
				return c.fail(err, "Failed to build services")
			}
			defer services.Close()

			results, err := services.Crawler.ProcessDirectory(ctx, args[0])
			if err != nil {
				return c.fail(err, "Directory analysis failed")
			}
			c.log.Info().Str("directory", args[0]).Int("cards", len(results)).Msg("Directory analyzed")

			if out == "" {
				return c.printJSON(results)
			}
			summary, err := crawler.SaveResults(results, out)
			if err != nil {
				return c.fail(err, "Failed to save results")
			}
			return c.printJSON(summary)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write results to this JSON file instead of stdout")
	return cmd
}

func (c *cli) analyzeCmd() *cobra.Command {
	var customerID, bank, card string
	cmd := &cobra.Command{
		Use:   "analyze --customer ID <statement.pdf>...",
		Short: "Analyze local statement PDFs for a customer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := c.services(ctx)
			if err != nil {
				return c.fail(err, "Failed to build services")
			}
			defer services.Close()

			files, err := readStatementFiles(args, services.Limits.MaxFileBytes)
			if err != nil {
				return c.fail(err, "Failed to read statements")
			}

			res, err := services.Statements.Process(ctx, pipeline.Request{
				CustomerID: customerID,
				CardBank:   bank,
				CardName:   card,
				Files:      files,
			})
			if err != nil {
				return c.fail(err, "Statement analysis failed")
			}

			c.logOutcome(res)
			return c.printJSON(res.Computed.Analysis)
		},
	}
	cmd.Flags().StringVar(&customerID, "customer", "", "customer ID (required)")
	cmd.Flags().StringVar(&bank, "bank", "", "issuing bank of the statement card")
	cmd.Flags().StringVar(&card, "card", "", "name of the statement card")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func (c *cli) reanalyzeCmd() *cobra.Command {
	var documentID string
	cmd := &cobra.Command{
		Use:   "reanalyze --document ID",
		Short: "Analyze the stored files of an earlier upload again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := c.services(ctx)
			if err != nil {
				return c.fail(err, "Failed to build services")
			}
			defer services.Close()

			res, err := services.Statements.Reprocess(ctx, documentID)
			if err != nil {
				return c.fail(err, "Reanalysis failed")
			}
			c.logOutcome(res)
			return c.printJSON(res.Computed.Analysis)
		},
	}
	cmd.Flags().StringVar(&documentID, "document", "", "document upload ID (required)")
	_ = cmd.MarkFlagRequired("document")
	return cmd
}

func (c *cli) recommendCmd() *cobra.Command {
	var customerID string
	var held []string
	cmd := &cobra.Command{
		Use:   "recommend --customer ID",
		Short: "Rank catalog cards for a customer's latest statement analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := c.services(ctx)
			if err != nil {
				return c.fail(err, "Failed to build services")
			}
			defer services.Close()

			recs, err := services.Recommend.Recommend(ctx, recommend.Request{
				CustomerID: customerID,
				HeldCards:  held,
			})
			if err != nil {
				return c.fail(err, "Recommendation failed")
			}
			if recs == nil {
				recs = []recommend.Recommendation{}
			}
			return c.printJSON(recs)
		},
	}
	cmd.Flags().StringVar(&customerID, "customer", "", "customer ID (required)")
	cmd.Flags().StringSliceVar(&held, "card", nil, "names of cards the customer already holds")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func (c *cli) authenticateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authenticate <link-token>",
		Short: "Register a new customer for a link token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := c.services(ctx)
			if err != nil {
				return c.fail(err, "Failed to build services")
			}
			defer services.Close()

			res, err := services.Customers.Authenticate(ctx, args[0])
			if err != nil {
				return c.fail(err, "Authentication failed")
			}
			return c.printJSON(res)
		},
	}
}

// logOutcome reports skipped files and whether the analysis was stored.
func (c *cli) logOutcome(res *pipeline.Result) {
	for _, skipped := range res.Computed.SkippedFiles {
		c.log.Warn().Str("file", skipped.Name).Err(skipped.Err).Msg("File skipped")
	}
	if res.Persistence.Saved() {
		c.log.Info().
			Str("analysis_id", res.Persistence.AnalysisID).
			Str("document_id", res.Persistence.DocumentID).
			Msg("Analysis saved")
	} else {
		c.log.Warn().Err(res.Persistence.Err).Msg("Analysis was not saved")
	}
}

func (c *cli) fail(err error, msg string) error {
	c.log.Error().Err(err).Msg(msg)
	return err
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readStatementFiles loads local statement files. Files larger than limit are
// rejected here so the pipeline sees the same bound as an HTTP upload.
func readStatementFiles(paths []string, limit int64) ([]pipeline.File, error) {
	files := make([]pipeline.File, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("readStatementFiles: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("readStatementFiles: %s is a directory", path)
		}
		if limit > 0 && info.Size() > limit {
			return nil, fmt.Errorf("readStatementFiles: %s is larger than %d bytes", path, limit)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("readStatementFiles: %w", err)
		}

		contentType := "application/octet-stream"
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			contentType = oracle.MIMETypePDF
		}
		files = append(files, pipeline.File{
			Name:        filepath.Base(path),
			ContentType: contentType,
			Data:        data,
		})
	}
	return files, nil
}
