// Package main is the entrypoint for the vidgate client CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vidgate/internal/auth"
	"vidgate/internal/client"
	"vidgate/internal/config"
	"vidgate/internal/device"
	apierrors "vidgate/internal/errors"
	"vidgate/internal/infrastructure"
	"vidgate/internal/session"
	"vidgate/pkg/contracts"
	"vidgate/pkg/contracts/domain"
)

// SessionTokenEnv carries the session token to commands started by `vidgate run`.
const SessionTokenEnv = "VIDGATE_SESSION_TOKEN"

// newDevices returns the device identity used by the CLI.
var newDevices = func(logger *slog.Logger) device.Provider {
	return device.NewFingerprint(device.SystemSources(), logger)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(infrastructure.EnsureTraceID(context.Background()), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	os.Exit(exitStatus(os.Stderr, err))
}

// exitStatus reports err on w and returns the process exit status. The
// status of a command started by `run` passes through silently.
func exitStatus(w io.Writer, err error) int {
	var exit exitCodeError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exit):
		return int(exit)
	default:
		fmt.Fprintln(w, "Error:", err)
		return 1
	}
}

// exitCodeError propagates the exit status of a command started by `run`.
type exitCodeError int

func (e exitCodeError) Error() string { return fmt.Sprintf("command exited with status %d", int(e)) }

type globalFlags struct {
	server   string
	stateDir string
	verbose  bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "vidgate",
		Short: "vidgate - licensed access to the video processing engine",
		Long: `vidgate activates a license on this machine and checks it with the
license authority before every paid run.

Run 'vidgate login KEY' to activate a license.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.server, "server", "", "license authority URL (overrides VIDGATE_CLIENT_AUTHORITY_URL)")
	rootCmd.PersistentFlags().StringVar(&flags.stateDir, "state-dir", "", "directory for the persisted session (overrides VIDGATE_CLIENT_STATE_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log to stderr at debug level")

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(flags),
		newStatusCmd(flags),
		newVerifyCmd(flags),
		newRunCmd(flags),
		newLogoutCmd(flags),
		newDeviceCmd(flags),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			info := contracts.GetVersionInfo()
			fmt.Fprintf(out, "vidgate %s\n", info.Version)
			fmt.Fprintf(out, "  Protocol:   %s\n", info.APIVersion)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// env is everything a client command needs.
type env struct {
	cfg         *config.Config
	logger      *infrastructure.Logger
	client      *client.AuthorityClient
	coordinator *auth.Coordinator
}

func (e *env) close() {
	e.coordinator.Close()
	e.logger.Close()
}

// explain turns an error into the localized message shown to the user.
func (e *env) explain(err error) error {
	code := apierrors.Code(err)
	return fmt.Errorf("%s (%s)", apierrors.Message(code, e.cfg.Client.Language), code)
}

func setup(flags *globalFlags) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.server != "" {
		cfg.Client.AuthorityURL = strings.TrimSuffix(flags.server, "/")
	}
	if flags.stateDir != "" {
		cfg.Client.StateDir = flags.stateDir
	}
	if flags.verbose {
		cfg.Logging.Level = "debug"
	} else {
		cfg.Logging.Level = "warn"
	}

	logger, err := infrastructure.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	storage, err := session.NewFileStorage(cfg.Client.StateDir)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open state dir: %w", err)
	}
	cache := session.NewCache(storage, cfg.Client.SessionTTL, time.Now, logger.Logger)

	authority, err := client.New(cfg.Client.AuthorityURL, cfg.Client.Timeout, logger.Logger,
		client.WithCookieName(cfg.Token.CookieName))
	if err != nil {
		logger.Close()
		return nil, err
	}

	coordinator, err := auth.NewCoordinator(auth.Options{
		Authority: authority,
		Devices:   newDevices(logger.Logger),
		Cache:     cache,
		Logger:    logger.Logger,
	})
	if err != nil {
		logger.Close()
		return nil, err
	}

	return &env{cfg: cfg, logger: logger, client: authority, coordinator: coordinator}, nil
}

func newLoginCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login KEY",
		Short: "Activate or validate a license on this machine",
		Long: `Activate an unactivated license on this machine, or validate a license
already bound to it. Each successful login counts one processed video.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(flags)
			if err != nil {
				return err
			}
			defer e.close()

			s, err := e.coordinator.Login(cmd.Context(), args[0])
			if err != nil {
				return e.explain(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Login successful.")
			printLicense(out, s.License, nil)
			return nil
		},
	}
}

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted session after checking it with the authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(flags)
			if err != nil {
				return err
			}
			defer e.close()

			out := cmd.OutOrStdout()
			ok, err := e.coordinator.Init(cmd.Context())
			if !ok {
				fmt.Fprintf(out, "Status: %s\n", auth.Unauthenticated)
				if err != nil && !errors.Is(err, apierrors.ErrNoSession) {
					fmt.Fprintf(out, "Reason: %s\n", e.explain(err))
				}
				if key, found, _ := e.coordinator.LastLicenseKey(); found {
					fmt.Fprintf(out, "Last license: %s\n", infrastructure.MaskLicenseKey(key))
				}
				return nil
			}

			s := e.coordinator.Session()
			fmt.Fprintf(out, "Status: %s\n", auth.Authenticated)
			printLicense(out, s.License, domain.RemainingDays(s.License.ExpiresAt, time.Now()))
			fmt.Fprintf(out, "Session expires: %s\n", s.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}
}

func newVerifyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run the strict license check required before processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(flags)
			if err != nil {
				return err
			}
			defer e.close()

			v, err := verify(cmd.Context(), e)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "License verified.")
			printLicense(out, v.Session.License, v.RemainingDays)
			return nil
		},
	}
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run -- COMMAND [ARGS...]",
		Short: "Verify the license, then run a processing command",
		Long: `Run the strict license check and, if it passes, start COMMAND with the
session token in ` + SessionTokenEnv + `. The exit status of COMMAND is returned.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(flags)
			if err != nil {
				return err
			}
			defer e.close()

			if _, err := verify(cmd.Context(), e); err != nil {
				return err
			}

			token, _ := e.client.SessionToken()
			child := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
			child.Stdin = cmd.InOrStdin()
			child.Stdout = cmd.OutOrStdout()
			child.Stderr = cmd.ErrOrStderr()
			child.Env = append(os.Environ(), SessionTokenEnv+"="+token)

			e.logger.DebugContext(cmd.Context(), "starting processing command", slog.String("command", args[0]))
			if err := child.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					return exitCodeError(exitErr.ExitCode())
				}
				return fmt.Errorf("start %s: %w", args[0], err)
			}
			return nil
		},
	}
}

func newLogoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(flags)
			if err != nil {
				return err
			}
			defer e.close()

			e.coordinator.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newDeviceCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Print the device identifier sent to the authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(flags)
			if err != nil {
				return err
			}
			defer e.close()

			id, err := e.coordinator.DeviceID(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

// verify restores the persisted session and runs the strict check.
func verify(ctx context.Context, e *env) (*auth.Verification, error) {
	if ok, err := e.coordinator.Init(ctx); !ok {
		if err == nil || errors.Is(err, apierrors.ErrNoSession) {
			err = apierrors.ErrNotAuthenticated
		}
		return nil, e.explain(err)
	}

	v, err := e.coordinator.VerifyBeforeProcessing(ctx)
	if err != nil {
		return nil, e.explain(err)
	}
	return v, nil
}

func printLicense(out io.Writer, v domain.LicenseView, remainingDays *int) {
	fmt.Fprintf(out, "License:          %s\n", infrastructure.MaskLicenseKey(v.Key))
	if v.Plan != "" {
		fmt.Fprintf(out, "Plan:             %s\n", v.Plan)
	}
	if v.DeviceName != "" {
		fmt.Fprintf(out, "Device:           %s\n", v.DeviceName)
	}
	fmt.Fprintf(out, "Processed videos: %d\n", v.ProcessedVideos)
	switch {
	case v.ExpiresAt == nil:
		fmt.Fprintln(out, "Expires:          never")
	case remainingDays != nil:
		fmt.Fprintf(out, "Expires:          %s (%d days left)\n", v.ExpiresAt.Local().Format(time.DateOnly), *remainingDays)
	default:
		fmt.Fprintf(out, "Expires:          %s\n", v.ExpiresAt.Local().Format(time.DateOnly))
	}
}
