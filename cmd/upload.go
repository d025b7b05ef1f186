package cmd

import (
	"errors"
	"time"

	"filecast/internal/payload"

	"github.com/spf13/cobra"
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload the sample JSON document to the channel",
	Long: `Upload the sample JSON document as sample-data.json to the configured
channel and print the result. Subscribers of the channel are notified of the file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload()
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload() error {
	ctx := createContext()
	svc, err := createServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	controller := svc.newController(payload.NewSample(time.Now(), nil))
	result := controller.Upload(ctx)
	if !result.Success {
		return errors.New(result.Error)
	}
	return nil
}
