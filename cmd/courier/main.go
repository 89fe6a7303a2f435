package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/courier-mail/courier/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFlag     string
	logLevelFlag   string
	dataDirFlag    string
	passphraseFlag string
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Check, read and send mail over POP3 and SMTP",
	Long: `courier talks to the POP3 and SMTP servers of the accounts listed in its
TOML configuration file.`,
	Version:       version.Default.Version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevelFlag)
		if err != nil {
			return err
		}

		logrus.SetLevel(level)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "courier.toml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warning", "Log level (trace, debug, info, warning, error)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory of the message cache (overrides data_dir)")
	rootCmd.PersistentFlags().StringVar(&passphraseFlag, "passphrase", "", "Passphrase encrypting the message cache")

	rootCmd.AddCommand(checkCmd, listCmd, fetchCmd, sendCmd, exportCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
