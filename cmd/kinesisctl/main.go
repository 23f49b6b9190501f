// kinesisctl drives the motion engine from the command line: validate
// morphology documents, run canned scenarios into the recording store,
// and inspect what was recorded.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kinesis/internal/config"
	kinesisapi "kinesis/pkg/kinesis"
)

type rootOptions struct {
	configPath string
	storeKind  string
	dbPath     string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "kinesisctl",
		Short:         "Operate the kinesis motion engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "engine config file (yaml)")
	cmd.PersistentFlags().StringVar(&opts.storeKind, "store", "", "recording store backend: memory|sqlite")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db-path", "kinesis.db", "sqlite database path")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newValidateCmd(opts),
		newScenariosCmd(),
		newRunCmd(opts),
		newReplayCmd(opts),
		newRunsCmd(opts),
	)
	return cmd
}

func (o *rootOptions) buildLogger() (*zap.Logger, error) {
	if o.verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(o.configPath)
}

func (o *rootOptions) newClient(cmd *cobra.Command) (*kinesisapi.Client, *zap.Logger, error) {
	logger, err := o.buildLogger()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := kinesisapi.New(cmd.Context(), kinesisapi.Options{
		Config:    cfg,
		StoreKind: o.storeKind,
		DBPath:    o.dbPath,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, logger, nil
}
