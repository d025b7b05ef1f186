package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filecast/internal/app"
	"filecast/internal/config"
	"filecast/internal/payload"
	"filecast/internal/reporter"
	"filecast/internal/transport"
	"filecast/internal/ui"

	formatter "github.com/bluexlab/logrus-formatter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg     *config.Config
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "filecast",
	Short: "filecast - channel file transfer demo",
	Long: `filecast publishes a sample JSON document as a file on a hosted pub/sub
channel and downloads every file announced on that channel.

Usage:
  Upload the sample once:      filecast upload
  Watch the channel for files: filecast watch
  Upload and receive it back:  filecast demo --uploads 3

The transport is selected with --provider (pubnub, firebase or memory).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		formatter.InitLogger()

		initConfig()

		var err error
		cfg, err = config.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		level, _ := logrus.ParseLevel(cfg.Log.Level)
		logrus.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.filecast.yaml)")
	rootCmd.PersistentFlags().String("provider", "", "transport provider: pubnub, firebase or memory")
	rootCmd.PersistentFlags().String("channel", "", "channel to publish to and watch")
	rootCmd.PersistentFlags().String("log-level", "", "log level")

	viper.BindPFlag("transport.provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("channel", rootCmd.PersistentFlags().Lookup("channel"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			logrus.Warnf("Could not find home directory: %v", err)
			return
		}

		// Search config in home directory with name ".filecast" (without extension)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".filecast")
	}

	if err := viper.ReadInConfig(); err == nil {
		logrus.Infof("Using config file: %s", viper.ConfigFileUsed())
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// createContext creates a context that cancels on interrupt signals
func createContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	return ctx
}

type services struct {
	client   transport.Client
	console  *ui.ConsoleUI
	reporter *reporter.SessionReporter
	userID   string
}

// createServices creates and wires up all the application services
func createServices(ctx context.Context) (*services, error) {
	userID := cfg.NewUserID(time.Now())

	client, err := transport.NewClient(ctx, cfg, userID)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"provider": cfg.Transport.Provider,
		"channel":  cfg.Channel,
		"user":     userID,
	}).Info("Transport ready")

	return &services{
		client:   client,
		console:  ui.NewConsoleUI(os.Stdout, os.Stderr),
		reporter: reporter.NewSessionReporter(os.Stdout),
		userID:   userID,
	}, nil
}

// newController builds the workflow controller rendering to the console
func (s *services) newController(sample payload.Sample, extra ...app.Option) *app.Controller {
	opts := []app.Option{
		app.WithDownloadListener(s.console.ShowDownloadState),
		app.WithDownloadListener(s.reporter.OnDownload),
		app.WithUploadListener(s.console.ShowUploadResult),
		app.WithUploadListener(s.reporter.OnUpload),
		app.WithLogger(logrus.WithFields(logrus.Fields{
			"component": "controller",
			"channel":   cfg.Channel,
		})),
	}
	if cfg.Download.DropStale {
		opts = append(opts, app.WithStaleDownloadsDropped())
	}
	opts = append(opts, extra...)
	return app.NewController(s.client, cfg.Channel, sample, opts...)
}

func (s *services) close() {
	if err := s.client.Close(); err != nil {
		logrus.Warnf("Error closing transport: %v", err)
	}
}
