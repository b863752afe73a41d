package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yarkm13/ftpsync/internal/config"
	"github.com/yarkm13/ftpsync/internal/job"
	"github.com/yarkm13/ftpsync/internal/logging"
	"github.com/yarkm13/ftpsync/internal/transfer"
)

type app struct {
	cfg *config.AppConfig
	log *logrus.Logger
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "ftpsync",
		Short:         "Download recent files from FTP/SFTP servers on a schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.New(), cmd.Flags())
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
	}
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		a.runCommand(),
		a.execCommand(),
		a.encryptCommand(),
		keygenCommand(),
	)

	if err := root.Execute(); err != nil {
		if a.log != nil {
			a.log.WithError(err).Error("ftpsync failed")
		} else {
			fmt.Fprintln(os.Stderr, "ftpsync:", err)
		}
		if job.IsConfigurationError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func (a *app) newJob() *job.Job {
	if a.cfg.Encryption.Enabled && a.cfg.Encryption.Key == "" {
		a.log.Warnf("encryption is enabled but %s is not set, credentials will be used as supplied", config.EncryptionKeySetting)
	}

	registry := transfer.DefaultRegistry(transfer.Options{
		KnownHostsFile: a.cfg.KnownHosts,
		FTPLocation:    a.cfg.FTPLocation,
		Log:            a.log,
	})
	return job.New(registry,
		job.WithLogger(a.log),
		job.WithDecryptor(job.Decryptor{
			Enabled: a.cfg.Encryption.Enabled,
			Key:     a.cfg.Encryption.Key,
			Strict:  a.cfg.Encryption.Strict,
		}),
		job.WithTimeouts(a.cfg.Timeouts.Connect, a.cfg.Timeouts.Transfer),
	)
}
