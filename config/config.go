package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// Config captures all command-line options across the reader's commands.
// Each command registers and loads only the subset it needs; the archive
// path always arrives as the positional argument.
type Config struct {
	ArchivePath string
	LogLevel    string
	LogDir      string
	LinkBudget  int
	IncludeName []string
	IncludeText []string
	ExcludeName []string
	ExcludeText []string

	// export-mbox
	OutputPath string

	// export-imap
	IMAPHost           string
	IMAPPort           int
	IMAPUser           string
	IMAPPass           string
	UseTLS             bool
	InsecureSkipVerify bool
	MailboxPrefix      string
	StateDir           string
	DryRun             bool
	TrackState         bool
}

// RegisterCommonFlags attaches the flags shared by every command as
// persistent flags on the root.
func RegisterCommonFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("log-level", "info", "Logging level: debug, info, warn, error (debug enables decoder tracing)")
	flags.String("log-dir", "", "Directory for log files (empty logs to stdout only)")
	flags.Int("link-budget", 0, "Maximum link hops per chain traversal, 0 for unlimited")
	flags.StringArray("include-name", nil, "Regex allow-list applied to conversation names (mutually exclusive with exclude flags)")
	flags.StringArray("include-text", nil, "Regex allow-list applied to message author/text (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-name", nil, "Regex block-list applied to conversation names (mutually exclusive with include flags)")
	flags.StringArray("exclude-text", nil, "Regex block-list applied to message author/text (mutually exclusive with include flags)")
}

// RegisterIMAPFlags attaches the export-imap specific flags.
func RegisterIMAPFlags(cmd *cobra.Command) error {
	defaultStateDir, err := defaultStateDir()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	flags.String("imap-host", "", "IMAP server hostname")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.String("imap-user", "", "IMAP username")
	flags.String("imap-pass", "", "IMAP password (falls back to IMAP_PASS env var)")
	flags.Bool("use-tls", true, "Use TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("mailbox-prefix", "MRA", "Mailbox prefix; each conversation becomes a mailbox under it")
	flags.String("state-dir", defaultStateDir, "Directory for incremental export state files")
	flags.Bool("dry-run", false, "Simulate the export and emit stats without uploading")

	if err := cmd.MarkFlagRequired("imap-host"); err != nil {
		return err
	}
	if err := cmd.MarkFlagRequired("imap-user"); err != nil {
		return err
	}

	return nil
}

// LoadCommon converts the parsed common flags plus the positional archive
// path into a Config with validation.
func LoadCommon(cmd *cobra.Command, args []string) (Config, error) {
	flags := cmd.Flags()

	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}
	linkBudget, err := flags.GetInt("link-budget")
	if err != nil {
		return Config{}, err
	}
	includeName, err := flags.GetStringArray("include-name")
	if err != nil {
		return Config{}, err
	}
	includeText, err := flags.GetStringArray("include-text")
	if err != nil {
		return Config{}, err
	}
	excludeName, err := flags.GetStringArray("exclude-name")
	if err != nil {
		return Config{}, err
	}
	excludeText, err := flags.GetStringArray("exclude-text")
	if err != nil {
		return Config{}, err
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		ArchivePath: args[0],
		LogLevel:    logLevel,
		LogDir:      logDir,
		LinkBudget:  linkBudget,
		IncludeName: includeName,
		IncludeText: includeText,
		ExcludeName: excludeName,
		ExcludeText: excludeText,
	}

	if err := validateCommon(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadIMAP augments cfg with the export-imap flags.
func LoadIMAP(cmd *cobra.Command, cfg Config) (Config, error) {
	flags := cmd.Flags()

	imapHost, err := flags.GetString("imap-host")
	if err != nil {
		return Config{}, err
	}
	imapPort, err := flags.GetInt("imap-port")
	if err != nil {
		return Config{}, err
	}
	imapUser, err := flags.GetString("imap-user")
	if err != nil {
		return Config{}, err
	}
	imapPass, err := flags.GetString("imap-pass")
	if err != nil {
		return Config{}, err
	}
	useTLS, err := flags.GetBool("use-tls")
	if err != nil {
		return Config{}, err
	}
	insecureSkipVerify, err := flags.GetBool("insecure-skip-verify")
	if err != nil {
		return Config{}, err
	}
	mailboxPrefix, err := flags.GetString("mailbox-prefix")
	if err != nil {
		return Config{}, err
	}
	stateDir, err := flags.GetString("state-dir")
	if err != nil {
		return Config{}, err
	}
	dryRun, err := flags.GetBool("dry-run")
	if err != nil {
		return Config{}, err
	}

	if imapPass == "" {
		imapPass = os.Getenv("IMAP_PASS")
	}

	if stateDir == "" {
		stateDir, err = defaultStateDir()
		if err != nil {
			return Config{}, err
		}
	}

	cfg.IMAPHost = imapHost
	cfg.IMAPPort = imapPort
	cfg.IMAPUser = imapUser
	cfg.IMAPPass = imapPass
	cfg.UseTLS = useTLS
	cfg.InsecureSkipVerify = insecureSkipVerify
	cfg.MailboxPrefix = mailboxPrefix
	cfg.StateDir = filepath.Clean(stateDir)
	cfg.DryRun = dryRun
	cfg.TrackState = true

	if err := validateIMAP(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateCommon(cfg Config) error {
	if cfg.ArchivePath == "" {
		return fmt.Errorf("archive path is required")
	}
	if cfg.LinkBudget < 0 {
		return fmt.Errorf("--link-budget must not be negative")
	}

	includeActive := len(cfg.IncludeName) > 0 || len(cfg.IncludeText) > 0
	excludeActive := len(cfg.ExcludeName) > 0 || len(cfg.ExcludeText) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

func validateIMAP(cfg Config) error {
	if cfg.IMAPHost == "" {
		return fmt.Errorf("--imap-host is required")
	}
	if cfg.IMAPUser == "" {
		return fmt.Errorf("--imap-user is required")
	}
	if cfg.IMAPPass == "" {
		return fmt.Errorf("IMAP password must be provided via --imap-pass or IMAP_PASS env var")
	}
	if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
		return fmt.Errorf("--imap-port must be between 1 and 65535")
	}
	return nil
}

func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mra-reader", "state"), nil
}
