package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitkovar/media-atlas/internal/scanner"
	"github.com/vitkovar/media-atlas/internal/web"
	"github.com/vitkovar/media-atlas/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Media Atlas web server.
The server watches the library for changes, keeps the catalog in sync,
and serves the search, identity and spatial APIs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("watch", true, "Watch the library for filesystem changes")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comp, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comp.close()

	port, host := resolveServeHostPort(cmd)

	comp.reconciler.Start(ctx)

	if mustGetBool(cmd, "watch") {
		notifier, err := scanner.NewNotifier(comp.cfg.Library.Root, comp.cfg.Library.IgnoreDirs, comp.reconciler.Trigger)
		if err != nil {
			fmt.Printf("Warning: filesystem watching disabled: %v\n", err)
		} else {
			notifier.Start(ctx)
			fmt.Printf("Watching %s for changes\n", comp.cfg.Library.Root)
		}
	}

	// kick an initial reconciliation so a fresh library is indexed on boot
	comp.reconciler.Trigger()

	server := web.NewServer(host, port, &handlers.Deps{
		Store:      comp.store,
		Reconciler: comp.reconciler,
		Ranker:     comp.ranker,
		Registry:   comp.registry,
		ThumbsDir:  comp.cfg.Library.ThumbsDir,
		LibraryDir: comp.cfg.Library.Root,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
		cancel()
	}()

	fmt.Printf("Starting Media Atlas on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
