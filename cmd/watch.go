package cmd

import (
	"time"

	"filecast/internal/app"
	"filecast/internal/file"
	"filecast/internal/payload"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Download and display every file published on the channel",
	Long: `Subscribe to the configured channel and, for each file notification,
download the file and print its JSON content. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(saveDir)
	},
}

var saveDir string

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Bool("drop-stale", false, "only show the download of the latest notification")
	watchCmd.Flags().StringVarP(&saveDir, "save-dir", "d", "", "directory to save downloaded files into")
	viper.BindPFlag("download.drop_stale", watchCmd.Flags().Lookup("drop-stale"))
}

func runWatch(saveDir string) error {
	var extra []app.Option
	if saveDir != "" {
		saver, err := file.NewSaver(saveDir)
		if err != nil {
			return err
		}
		extra = append(extra, app.WithDownloadListener(saver.OnDownload))
	}

	ctx := createContext()
	svc, err := createServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	controller := svc.newController(payload.NewSample(time.Now(), nil), extra...)
	svc.console.ShowDownloadState(app.DownloadState{Phase: app.Idle})

	if err := controller.Mount(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	if err := controller.Unmount(); err != nil {
		return err
	}
	svc.reporter.PrintSummary()
	return nil
}
