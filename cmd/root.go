package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "media-atlas",
	Short: "A searchable, spatial catalog for a personal media library",
	Long: `Media Atlas watches a directory of images, audio, and video, embeds
everything into a shared vector space, and serves similarity search,
identity recognition, and a 3D map of the whole collection.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
