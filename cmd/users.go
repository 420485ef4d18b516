package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage enrolled people",
	Long: `Manage the gallery of enrolled people.

Each person is one image in the gallery folder (DATASET_DIR), named
"<name>, <position>.<ext>". Adding a person requires exactly one detectable
face in the image.`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled people",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersAddCmd = &cobra.Command{
	Use:   "add <name> <image>",
	Short: "Enroll a person from an image",
	Long: `Enroll a person from an image file.

Examples:
  face-attendance users add "Jane Doe" jane.jpg --position Engineer
  face-attendance users add "John Smith" john.png`,
	Args: cobra.ExactArgs(2),
	RunE: runUsersAdd,
}

var usersRenameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename an enrolled person",
	Long: `Rename an enrolled person. The position is kept unless --position is given.

Examples:
  face-attendance users rename "Jane Doe" "Jane Smith"
  face-attendance users rename "Jane Doe" "Jane Doe" --position "Team Lead"`,
	Args: cobra.ExactArgs(2),
	RunE: runUsersRename,
}

var usersReenrollCmd = &cobra.Command{
	Use:   "reenroll <name> <image>",
	Short: "Replace the reference image of an enrolled person",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersReenroll,
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an enrolled person",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersRemove,
}

var usersReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rescan the gallery folder and report skipped images",
	Long: `Rescan the gallery folder and compute embeddings for every image.

With DATABASE_URL set, embeddings are stored in PostgreSQL and reused by
later runs as long as the image content is unchanged.`,
	Args: cobra.NoArgs,
	RunE: runUsersReindex,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd, usersAddCmd, usersRenameCmd, usersReenrollCmd, usersRemoveCmd, usersReindexCmd)

	usersListCmd.Flags().Bool("json", false, "Output as JSON")
	usersAddCmd.Flags().String("position", "", "Job position of the person")
	usersRenameCmd.Flags().String("position", "", "New job position")
	usersReindexCmd.Flags().Bool("json", false, "Output the load report as JSON")
}

func openGalleryApp(ctx context.Context) (*app, error) {
	return newApp(ctx, appOptions{gallery: true})
}

func runUsersList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	a, err := openGalleryApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	entries := a.gallery.Snapshot().Entries()

	if jsonOutput {
		type userJSON struct {
			identity.Identity
			Filename string `json:"filename"`
		}
		out := make([]userJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, userJSON{Identity: e.Identity, Filename: e.Filename()})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(entries) == 0 {
		fmt.Println("No people enrolled")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPOSITION\tFILE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Identity.Name, e.Identity.Position, e.Filename())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d\n", len(entries))
	return nil
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := identity.New(args[0], mustGetString(cmd, "position"))
	if err != nil {
		return err
	}
	image, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	a, err := openGalleryApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.gallery.Add(ctx, id, image)
	if err != nil {
		return fmt.Errorf("failed to enroll %s: %w", id.Name, err)
	}
	fmt.Printf("Enrolled %s as %s\n", entry.Identity, entry.Filename())
	return nil
}

func runUsersRename(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openGalleryApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	current, ok := a.gallery.Get(args[0])
	if !ok {
		return fmt.Errorf("%w: %q", gallery.ErrNotFound, args[0])
	}
	position := current.Identity.Position
	if cmd.Flags().Changed("position") {
		position = mustGetString(cmd, "position")
	}

	id, err := identity.New(args[1], position)
	if err != nil {
		return err
	}
	entry, err := a.gallery.Rename(ctx, args[0], id)
	if err != nil {
		return fmt.Errorf("failed to rename %s: %w", args[0], err)
	}
	fmt.Printf("Renamed %s to %s (%s)\n", args[0], entry.Identity, entry.Filename())
	return nil
}

func runUsersReenroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	image, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	a, err := openGalleryApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.gallery.Reenroll(ctx, args[0], image)
	if err != nil {
		return fmt.Errorf("failed to re-enroll %s: %w", args[0], err)
	}
	fmt.Printf("Updated reference image of %s (%s)\n", entry.Identity, entry.Filename())
	return nil
}

func runUsersRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openGalleryApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.gallery.Remove(ctx, args[0])
	switch {
	case errors.Is(err, gallery.ErrArtifactMissing):
		fmt.Printf("Warning: %v\n", err)
	case err != nil:
		return fmt.Errorf("failed to remove %s: %w", args[0], err)
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}

func runUsersReindex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ext, err := newExtractor(a.cfg)
	if err != nil {
		return err
	}
	a.extractor = ext

	_, report, err := a.loadGallery(ctx, !jsonOutput)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, s := range report.Skipped {
		fmt.Printf("Skipped %s: %s\n", s.Filename, s.Reason)
	}
	return nil
}
