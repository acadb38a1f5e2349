// Package main is the entrypoint for vidgate-admin, the license provisioning tool.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vidgate/internal/config"
	"vidgate/internal/infrastructure"
	"vidgate/internal/store"
	"vidgate/pkg/contracts/domain"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vidgate-admin",
		Short: "Provision and inspect vidgate licenses",
		Long: `vidgate-admin writes license records into the store configured for the
license authority (VIDGATE_STORE_*) and lists what is there.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newImportCmd(),
		newListCmd(),
		newEnvCmd(),
	)

	return rootCmd
}

// openStore loads the configuration and opens the configured backend.
func openStore(ctx context.Context, w io.Writer) (store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := infrastructure.NewLogger(cfg.Logging, w)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	s, err := store.New(ctx, cfg.Store, logger.Logger)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Backend == config.StoreMemory {
		logger.WarnContext(ctx, "memory backend selected, changes last only for this process",
			slog.String("hint", "set VIDGATE_STORE_BACKEND"))
	}
	return s, nil
}

func newImportCmd() *cobra.Command {
	var overwrite, dryRun bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import license records from an .xlsx workbook or a JSON file",
		Long: `Import license records into the configured store. Workbooks use the
columns of the license sheet: key, plan, activated_on, device_hash,
device_name, expires_at, duration_days, processed_videos, version.
JSON files hold an array of records or a {"record": [...]} document.

Existing keys are left alone unless --overwrite is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], overwrite, dryRun)
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace records whose key already exists")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without saving")

	return cmd
}

func runImport(ctx context.Context, out, logOut io.Writer, path string, overwrite, dryRun bool) error {
	records, err := store.ReadRecords(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	s, err := openStore(ctx, logOut)
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := s.Load(ctx)
	if err != nil {
		return fmt.Errorf("load licenses: %w", err)
	}

	res := c.Merge(records, overwrite)
	fmt.Fprintf(out, "%d added, %d replaced, %d skipped\n", res.Added, res.Replaced, res.Skipped)

	if dryRun || res.Added+res.Replaced == 0 {
		return nil
	}
	if err := s.Save(ctx, c); err != nil {
		return fmt.Errorf("save licenses: %w", err)
	}
	fmt.Fprintf(out, "Saved %d licenses.\n", len(c.Records))
	return nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List license records in the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			c, err := s.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load licenses: %w", err)
			}
			return printRecords(cmd.OutOrStdout(), c.Records, time.Now())
		},
	}
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables vidgate reads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Usage(cmd.OutOrStdout())
		},
	}
}

func printRecords(w io.Writer, records []domain.LicenseRecord, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tPLAN\tSTATE\tDEVICE\tEXPIRES\tVIDEOS")
	for _, rec := range records {
		expires := "-"
		switch {
		case rec.ExpiresAt != nil:
			expires = rec.ExpiresAt.UTC().Format(time.DateOnly)
		case !rec.Activated() && rec.DurationDays != nil:
			expires = fmt.Sprintf("%dd after activation", *rec.DurationDays)
		case rec.Activated():
			expires = "never"
		}
		device := rec.DeviceName
		if device == "" {
			device = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			rec.Key, rec.Plan, rec.State(now), device, expires, rec.ProcessedVideos)
	}
	return tw.Flush()
}
