package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
)

func newLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "List downloaded files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				files := a.library.ListMediaFiles(cmd.Context())
				if len(files) == 0 {
					printInfo("No downloads in " + a.library.Dir())
					return nil
				}

				t := newTable("Title", "Type", "Size", "Added")
				for _, f := range files {
					t.Row(f.Title, string(f.Type), vo.NewFileSize(f.Size).String(), humanize.Time(f.CreatedAt))
				}
				fmt.Println(t.String())
				return nil
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "storage",
			Short: "Show library size and free space",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(a *app) error {
					info := a.library.StorageUsage()
					printHeader(a.library.Dir())
					printDetail("Used", vo.NewFileSize(info.Used).String())
					printDetail("Available", vo.NewFileSize(info.Available).String())
					printDetail("Total", vo.NewFileSize(info.Total).String())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "rm [PATH]",
			Short: "Delete one downloaded file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(a *app) error {
					if !a.library.DeleteFile(args[0]) {
						return fmt.Errorf("failed to delete %s", args[0])
					}
					printSuccess("Deleted " + args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every downloaded file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(a *app) error {
					if !a.library.ClearAll() {
						return fmt.Errorf("some files could not be deleted")
					}
					printSuccess("Library cleared")
					return nil
				})
			},
		},
	)
	return cmd
}
