package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a one-shot library scan",
	Long: `Walk the media library once, ingest new files, remove catalog rows
for files that no longer exist, and refresh the spatial projection.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("skip-projection", false, "Skip recomputing the 3D projection after the scan")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nCancelling scan...")
		cancel()
	}()

	comp, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comp.close()

	fmt.Printf("Scanning %s\n", comp.cfg.Library.Root)

	// the file total is only known once the walk finishes, so the bar
	// is created on the first progress callback
	var bar *progressbar.ProgressBar
	persisted, err := comp.scanner.Run(ctx, func(current, total int, lastFile string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Indexing media"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("files"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		_ = bar.Set(current)
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Printf("Scan complete: %d file(s) ingested\n", persisted)

	if mustGetBool(cmd, "skip-projection") {
		return nil
	}

	fmt.Println("Recomputing 3D projection...")
	if err := comp.projector.Run(ctx); err != nil {
		fmt.Printf("Warning: projection failed: %v\n", err)
	}
	return nil
}
