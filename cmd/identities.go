package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vitkovar/media-atlas/internal/catalog"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Manage taught identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all taught identities",
	RunE:  runIdentitiesList,
}

var identitiesTeachCmd = &cobra.Command{
	Use:   "teach [name] [path...]",
	Short: "Teach an identity from anchor files",
	Long: `Associate a name with one or more library files. The identity's
prototype is recomputed from all linked assets, and a face prototype is
extracted from the first anchor when a face is found.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIdentitiesTeach,
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete an identity and its links",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesDelete,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesTeachCmd)
	identitiesCmd.AddCommand(identitiesDeleteCmd)
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	comp, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comp.close()

	ids, err := comp.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No identities taught yet")
		return nil
	}

	for _, id := range ids {
		face := ""
		if id.FacePrototype != nil {
			face = "  face"
		}
		fmt.Printf("%-30s %4d asset(s)%s\n", id.Name, id.Count, face)
	}
	return nil
}

func runIdentitiesTeach(cmd *cobra.Command, args []string) error {
	name, anchors := args[0], args[1:]

	ctx := context.Background()
	comp, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comp.close()

	id, err := comp.registry.Teach(ctx, name, anchors)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("anchor file not in the catalog yet, run a scan first: %w", err)
		}
		return fmt.Errorf("teaching %q: %w", name, err)
	}

	fmt.Printf("Taught %q from %d anchor(s), %d asset(s) linked\n", id.Name, len(anchors), id.Count)
	return nil
}

func runIdentitiesDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	comp, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comp.close()

	if err := comp.registry.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("deleting %q: %w", args[0], err)
	}
	fmt.Printf("Deleted identity %q\n", args[0])
	return nil
}
