package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yarkm13/ftpsync/internal/config"
	"github.com/yarkm13/ftpsync/internal/crypto"
	"github.com/yarkm13/ftpsync/internal/inventory"
	"github.com/yarkm13/ftpsync/internal/scheduler"
	"github.com/yarkm13/ftpsync/internal/secret"
)

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every enabled job from the jobs file on its interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inv, err := inventory.Load(a.cfg.JobsFile)
			if err != nil {
				return err
			}
			jobs := inv.Enabled()
			if len(jobs) == 0 {
				return fmt.Errorf("no enabled jobs in %s", a.cfg.JobsFile)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := scheduler.New(a.newJob(), scheduler.Options{
				Workers:    a.cfg.Scheduler.Workers,
				Jitter:     a.cfg.Scheduler.Jitter,
				MaxRetries: a.cfg.Scheduler.MaxRetries,
				RetryDelay: a.cfg.Scheduler.RetryDelay,
				Log:        a.log,
			})
			sched.Run(ctx, jobs)

			enqueued, dropped, succeeded, failed := sched.Stats()
			a.log.WithFields(logrus.Fields{
				"enqueued":  enqueued,
				"dropped":   dropped,
				"succeeded": succeeded,
				"failed":    failed,
			}).Info("shutdown")
			return nil
		},
	}
}

func (a *app) execCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <job>",
		Short: "Run one job from the jobs file once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := inventory.Load(a.cfg.JobsFile)
			if err != nil {
				return err
			}
			j, ok := inv.Find(args[0])
			if !ok {
				return fmt.Errorf("job %q not found in %s", args[0], a.cfg.JobsFile)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return scheduler.RunOnce(ctx, a.newJob(), j)
		},
	}
}

func (a *app) encryptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a credential for use in job parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := crypto.ParseKey(a.cfg.Encryption.Key)
			if err != nil {
				return fmt.Errorf("%s: %w", config.EncryptionKeySetting, err)
			}

			value, err := secret.Ask("Enter secret: ", os.Stdin, os.Stderr)
			if err != nil {
				return err
			}
			defer secret.Wipe(value)
			if len(value) == 0 {
				return errors.New("empty secret")
			}

			payload, err := crypto.Encrypt(string(value), key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload)
			return nil
		},
	}
}

func keygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new random " + config.EncryptionKeySetting,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := crypto.NewKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
