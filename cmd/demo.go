package cmd

import (
	"fmt"
	"time"

	"filecast/internal/app"
	"filecast/internal/payload"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type DemoFlags struct {
	Uploads  int
	Interval time.Duration
	Linger   time.Duration
}

var demoFlags DemoFlags

// demoCmd represents the demo command
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Upload the sample and receive it back through the channel",
	Long: `Run the full demo in one process:

1. Subscribe to the configured channel
2. Upload the sample JSON document (--uploads times, --interval apart)
3. Download and display each file announced on the channel
4. Unsubscribe after --linger once all uploads are done, or on interrupt

The sample document is generated once and reused for every upload.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateDemoFlags(&demoFlags)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd, &demoFlags)
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().IntVarP(&demoFlags.Uploads, "uploads", "n", 1, "number of uploads to perform")
	demoCmd.Flags().DurationVar(&demoFlags.Interval, "interval", 2*time.Second, "delay between uploads")
	demoCmd.Flags().DurationVar(&demoFlags.Linger, "linger", 10*time.Second, "time to keep watching after the last upload")
	demoCmd.Flags().Bool("drop-stale", false, "only show the download of the latest notification")
}

// validateDemoFlags validates the demo command flags
func validateDemoFlags(flags *DemoFlags) error {
	err := validation.ValidateStruct(flags,
		validation.Field(&flags.Uploads, validation.Required, validation.Min(1)),
		validation.Field(&flags.Interval, validation.Min(time.Duration(0))),
		validation.Field(&flags.Linger, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return fmt.Errorf("invalid demo flags: %w", err)
	}
	return nil
}

func runDemo(cmd *cobra.Command, flags *DemoFlags) error {
	if dropStale, _ := cmd.Flags().GetBool("drop-stale"); dropStale {
		cfg.Download.DropStale = true
	}

	ctx := createContext()
	svc, err := createServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	controller := svc.newController(payload.NewSample(time.Now(), nil))
	svc.console.ShowDownloadState(app.DownloadState{Phase: app.Idle})

	if err := controller.Mount(ctx); err != nil {
		return err
	}

	svc.console.ShowMessage("Uploading sample-data.json...")
	for i := 0; i < flags.Uploads; i++ {
		if i > 0 && !sleep(ctx.Done(), flags.Interval) {
			break
		}
		controller.Upload(ctx)
	}

	logrus.Debugf("All uploads done, lingering for %s", flags.Linger)
	sleep(ctx.Done(), flags.Linger)

	if err := controller.Unmount(); err != nil {
		return err
	}
	controller.Wait()
	svc.reporter.PrintSummary()
	return nil
}

// sleep waits for d and reports false if done fired first
func sleep(done <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-done:
		return false
	case <-timer.C:
		return true
	}
}
