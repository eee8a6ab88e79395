package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/iwvelando/loan-support/internal/settings"
	"github.com/iwvelando/loan-support/pkg/client"
	"github.com/iwvelando/loan-support/pkg/constants"
	"github.com/iwvelando/loan-support/pkg/output"
	"github.com/iwvelando/loan-support/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	envAPIBase = constants.EnvPrefix + "_API_BASE"
	envToken   = constants.EnvPrefix + "_TOKEN"
)

type rootOptions struct {
	settingsPath string
	apiBase      string
	token        string
	output       string
	timeout      time.Duration
	verbose      bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "loanctl",
		Short:         "Command-line client for the loan-support API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validation.ValidateOutputFormat(opts.output)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.settingsPath, "settings", "", "settings file (default <user config dir>/loan-support/settings.yaml)")
	flags.StringVar(&opts.apiBase, "api-base", "", "API base URL, overrides saved settings and "+envAPIBase)
	flags.StringVar(&opts.token, "token", "", "bearer token, overrides saved settings and "+envToken)
	flags.StringVarP(&opts.output, "output", "o", constants.OutputFormatPretty, "output format: pretty or json")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log retries and request details to stderr")

	root.AddCommand(
		settingsCommand(opts),
		healthCommand(opts),
		versionCommand(opts),
		ingestCommand(opts),
		askCommand(opts),
		eligibilityCommand(opts),
		historyCommand(opts),
	)
	return root
}

func (o *rootOptions) store() (*settings.Store, error) {
	return settings.NewStore(o.settingsPath)
}

// client resolves settings with precedence flags > environment > settings file.
func (o *rootOptions) client(cmd *cobra.Command) (*client.Client, error) {
	store, err := o.store()
	if err != nil {
		return nil, err
	}
	s, err := store.Load()
	if err != nil {
		return nil, err
	}

	if v := strings.TrimSpace(os.Getenv(envAPIBase)); v != "" {
		s.APIBase = v
	}
	if v := strings.TrimSpace(os.Getenv(envToken)); v != "" {
		s.BearerToken = v
	}
	if cmd.Flags().Changed("api-base") {
		s.APIBase = o.apiBase
	}
	if cmd.Flags().Changed("token") {
		s.BearerToken = o.token
	}

	cfg := s.ClientConfig()
	if o.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg.Logger = logger
	}
	return client.New(cfg)
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

// render writes v as indented JSON, or calls pretty for the human format.
func (o *rootOptions) render(w io.Writer, v interface{}, pretty func(io.Writer)) error {
	if o.output == constants.OutputFormatJSON {
		return output.JSON(w, v)
	}
	pretty(w)
	return nil
}

func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}

func settingsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the saved API base and bearer token",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			s, err := store.Load()
			if err != nil {
				return err
			}
			view := map[string]interface{}{
				"path":           store.Path(),
				"apiBase":        s.APIBase,
				"bearerTokenSet": s.BearerToken != "",
			}
			return opts.render(cmd.OutOrStdout(), view, func(w io.Writer) {
				fmt.Fprintf(w, "Settings file: %s\n", store.Path())
				fmt.Fprintf(w, "API base:      %s\n", s.APIBase)
				fmt.Fprintf(w, "Bearer token:  %s\n", maskToken(s.BearerToken))
			})
		},
	}

	var apiBase, token string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Update the API base and/or bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var update settings.Update
			if cmd.Flags().Changed("api-base") {
				update.APIBase = &apiBase
			}
			if cmd.Flags().Changed("token") {
				update.BearerToken = &token
			}
			if update.APIBase == nil && update.BearerToken == nil {
				return fmt.Errorf("nothing to update: pass --api-base and/or --token")
			}
			if update.APIBase != nil && strings.TrimSpace(apiBase) != "" {
				if _, err := client.New(client.Config{BaseURL: apiBase}); err != nil {
					return err
				}
			}

			store, err := opts.store()
			if err != nil {
				return err
			}
			s, err := store.Save(update)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved settings to %s (API base %s, token %s)\n",
				store.Path(), s.APIBase, maskToken(s.BearerToken))
			return nil
		},
	}
	// Local flags shadow the persistent connection overrides of the same name.
	setCmd.Flags().StringVar(&apiBase, "api-base", "", "API base URL to save; empty restores "+constants.DefaultAPIBase)
	setCmd.Flags().StringVar(&token, "token", "", "bearer token to save; empty removes it")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the saved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings cleared")
			return nil
		},
	}

	cmd.AddCommand(showCmd, setCmd, clearCmd)
	return cmd
}

func healthCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			status, err := c.Health(ctx)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), status, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s\n", c.BaseURL(), status.Status)
			})
		},
	}
}

func versionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			v, err := c.Version(ctx)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), map[string]string{"version": v}, func(w io.Writer) {
				fmt.Fprintln(w, v)
			})
		},
	}
}

func ingestCommand(opts *rootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest the PDF documents under a server-side path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			res, err := c.Ingest(ctx, path)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "Ingestion %s: %d pages, %d chunks\n", res.Status, res.Ingested.Pages, res.Ingested.Chunks)
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "document path on the server (default "+constants.DefaultDocumentsPath+")")
	return cmd
}

func askCommand(opts *rootOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the ingested documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("question must not be empty")
			}

			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			answer, err := c.Ask(ctx, query, topK)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), map[string]string{"answer": answer}, func(w io.Writer) {
				fmt.Fprintln(w, answer)
			})
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", constants.DefaultTopK, "number of passages to retrieve")
	return cmd
}

func eligibilityCommand(opts *rootOptions) *cobra.Command {
	var (
		req        client.EligibilityRequest
		loanAmount float64
	)
	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Calculate EMI, FOIR and the eligible loan amount",
		Long: `Calculate loan eligibility.

With --loan-amount the EMI is the amortized payment for that principal.
Without it the EMI is derived as 40% of income minus existing obligations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("loan-amount") {
				req.LoanAmount = &loanAmount
			}

			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			res, err := c.CalculateEligibility(ctx, req)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), res, func(w io.Writer) {
				output.Eligibility(w, res, req)
			})
		},
	}

	f := cmd.Flags()
	f.Float64Var(&req.MonthlyIncome, "income", 0, "gross monthly income")
	f.Float64Var(&req.MonthlyObligations, "obligations", 0, "existing monthly obligations")
	f.Float64Var(&req.ROI, "roi", 0, "annual interest rate in percent")
	f.IntVar(&req.TenureMonths, "tenure", 0, "loan tenure in months")
	f.Float64Var(&loanAmount, "loan-amount", 0, "desired loan amount (optional)")
	_ = cmd.MarkFlagRequired("income")
	_ = cmd.MarkFlagRequired("roi")
	_ = cmd.MarkFlagRequired("tenure")
	return cmd
}

func historyCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent eligibility calculations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			entries, err := c.History(ctx, limit)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), entries, func(w io.Writer) {
				output.History(w, entries)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", constants.DefaultHistoryLimit, "number of calculations to list")
	return cmd
}
