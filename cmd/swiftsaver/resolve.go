package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [URL]",
		Short: "Show metadata and available variants for a video URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				meta, err := a.resolver.FetchMetadata(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printMetadata(meta)
				return nil
			})
		},
	}
}

func printMetadata(meta *domain.VideoMetadata) {
	printHeader(meta.Title)
	printDetail("Platform", meta.Platform.DisplayName())
	printDetail("Author", meta.Author)
	printDetail("Duration", (time.Duration(meta.Duration) * time.Second).String())
	if meta.ViewCount > 0 {
		printDetail("Views", humanize.Comma(meta.ViewCount))
	}

	t := newTable("Quality", "Format", "Resolution", "Size", "Audio")
	for _, q := range meta.Qualities {
		resolution := "-"
		if q.Width > 0 && q.Height > 0 {
			resolution = fmt.Sprintf("%dx%d", q.Width, q.Height)
		}
		size := "-"
		if q.Size > 0 {
			size = vo.NewFileSize(q.Size).String()
		}
		t.Row(q.Quality, q.Format, resolution, size, strconv.FormatBool(q.HasAudio))
	}
	fmt.Println(t.String())
}
