package finality

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blockdeep/exbrid/chain/relaychain"
	"github.com/blockdeep/exbrid/relays/finality"
)

var (
	configFile     string
	privateKey     string
	privateKeyFile string
	logLevel       string
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finality",
		Short: "Start the Ethereum finality relay",
		Args:  cobra.ExactArgs(0),
		RunE:  run,
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to configuration file")
	cmd.MarkFlagRequired("config")

	cmd.Flags().StringVar(&privateKey, "substrate.private-key", "", "Private key URI for Substrate")
	cmd.Flags().StringVar(&privateKeyFile, "substrate.private-key-file", "", "The file from which to read the private key URI")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	return cmd
}

func run(_ *cobra.Command, _ []string) error {
	log.SetOutput(logrus.WithFields(logrus.Fields{"logger": "stdlib"}).WriterLevel(logrus.InfoLevel))
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	config, err := finality.LoadConfig(configFile)
	if err != nil {
		return err
	}

	keypair, err := relaychain.ResolvePrivateKey(privateKey, privateKeyFile)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	relay, err := finality.NewRelay(config, keypair, finality.NewMetrics(registry))
	if err != nil {
		return err
	}

	logrus.WithField("account", keypair.Address()).Info("Finality relay started up")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	// Ensure clean termination upon SIGINT, SIGTERM
	eg.Go(func() error {
		notify := make(chan os.Signal, 1)
		signal.Notify(notify, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-notify:
			logrus.WithField("signal", sig.String()).Info("Received signal")
			cancel()
		}

		return nil
	})

	err = relay.Start(ctx, eg)
	if err != nil {
		logrus.WithError(err).Error("Failed to start relay")
		cancel()
		return err
	}

	if config.Metrics.Listen != "" {
		finality.ServeStatus(ctx, eg, config.Metrics.Listen, finality.NewStatusRouter(relay, registry))
	}

	err = exitError(eg.Wait())
	if err != nil {
		logrus.WithError(err).Error("Unhandled error")
		return err
	}

	return nil
}

// exitError maps the relay's terminal error to the process result. A source
// node that ends its notification stream and a signal are clean shutdowns.
func exitError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, finality.ErrSourceClosed):
		logrus.Info("Source node stopped, shutting down")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}
