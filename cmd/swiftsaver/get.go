package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
	"github.com/vertextoedge/swiftsaver/internal/service/downloads"
)

func newGetCmd() *cobra.Command {
	var quality, format string

	cmd := &cobra.Command{
		Use:   "get [URL] [--quality QUALITY] [--format FORMAT]",
		Short: "Resolve a video URL and download one variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(a *app) error {
				return runGet(ctx, a, args[0], quality, format)
			})
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Quality label (defaults to the saved preference)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Container format (defaults to the saved preference)")
	return cmd
}

func runGet(ctx context.Context, a *app, url, quality, format string) error {
	settings := a.prefs.Get()
	if quality == "" {
		quality = settings.DefaultQuality
	}
	if format == "" {
		format = settings.DefaultFormat
	}

	printInfo("Resolving " + url)
	meta, err := a.resolver.FetchMetadata(ctx, url)
	if err != nil {
		return err
	}
	if !meta.HasVariant(quality, format) {
		printMetadata(meta)
		return fmt.Errorf("%w: %s/%s", domain.ErrVariantUnavailable, quality, format)
	}

	task, err := a.registry.CreateTask(downloads.CreateRequest{
		URL:       meta.OriginalURL,
		Title:     meta.Title,
		Thumbnail: meta.Thumbnail,
		Quality:   quality,
		Format:    format,
		Platform:  meta.Platform,
	})
	if err != nil {
		return err
	}

	finished := make(chan *domain.DownloadTask, 1)
	unsubscribe := a.registry.Subscribe(func(tasks []*domain.DownloadTask) {
		for _, t := range tasks {
			if t.ID == task.ID && t.IsTerminal() {
				select {
				case finished <- t:
				default:
				}
			}
		}
	})
	defer unsubscribe()

	unsubscribeProgress := a.registry.SubscribeProgress(func(p domain.DownloadProgress) {
		if p.TaskID == task.ID {
			fmt.Printf("\r%s", progressLine(p, 30))
		}
	})
	defer unsubscribeProgress()

	downloadURL, err := a.resolver.ResolveDownloadURL(ctx, meta.OriginalURL, quality, format)
	if err != nil {
		return err
	}
	printInfo(fmt.Sprintf("Downloading %s (%s %s)", task.FileName, quality, format))
	if err := a.registry.StartDownload(ctx, task.ID, downloadURL); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		fmt.Println()
		if err := a.registry.CancelDownload(task.ID); err != nil {
			return err
		}
		printWarning("Download cancelled")
		return ctx.Err()
	case t := <-finished:
		fmt.Println()
		switch t.Status {
		case domain.StatusCompleted:
			printSuccess(fmt.Sprintf("Saved %s (%s)", t.FilePath, vo.NewFileSize(t.TotalSize)))
			return nil
		case domain.StatusFailed:
			return fmt.Errorf("%w: %s", domain.ErrTransferFailure, t.Error)
		default:
			printWarning("Download " + string(t.Status))
			return nil
		}
	}
}
