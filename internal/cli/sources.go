package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erg0nix/samtale/internal/sources"
)

func newSourcesCmd() *cobra.Command {
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "manage the active sources",
		RunE:  runSourcesList,
	}

	sourcesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list active sources",
		RunE:  runSourcesList,
	})

	sourcesCmd.AddCommand(&cobra.Command{
		Use:   "add <file>...",
		Short: "ingest local documents or videos",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSourcesAdd,
	})

	sourcesCmd.AddCommand(&cobra.Command{
		Use:   "add-video <url>...",
		Short: "ingest YouTube videos by URL",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSourcesAddVideo,
	})

	sourcesCmd.AddCommand(&cobra.Command{
		Use:   "remove <name>...",
		Short: "remove sources by name",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSourcesRemove,
	})

	sourcesCmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "reconcile sources against the media directory",
		RunE:  runSourcesSync,
	})

	return sourcesCmd
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	services, err := newServices(cmd)
	if err != nil {
		return err
	}

	printSources(services)
	return nil
}

func runSourcesAdd(cmd *cobra.Command, args []string) error {
	services, err := newServices(cmd)
	if err != nil {
		return err
	}

	uploads := make([]sources.Upload, 0, len(args))
	for _, path := range args {
		upload, err := uploadForPath(path)
		if err != nil {
			return err
		}
		uploads = append(uploads, upload)
	}

	reportBatch(services.Sources.Add(cmd.Context(), uploads...))
	return nil
}

func runSourcesAddVideo(cmd *cobra.Command, args []string) error {
	services, err := newServices(cmd)
	if err != nil {
		return err
	}

	var uploads []sources.Upload
	for _, url := range args {
		parsed := sources.ParseYouTubeURLs(url)
		if len(parsed) == 0 {
			return fmt.Errorf("not a YouTube URL: %s", url)
		}
		uploads = append(uploads, parsed...)
	}

	reportBatch(services.Sources.Add(cmd.Context(), uploads...))
	return nil
}

func runSourcesRemove(cmd *cobra.Command, args []string) error {
	services, err := newServices(cmd)
	if err != nil {
		return err
	}

	reportBatch(services.Sources.Remove(cmd.Context(), args...))
	return nil
}

func runSourcesSync(cmd *cobra.Command, args []string) error {
	services, err := newServices(cmd)
	if err != nil {
		return err
	}

	desired, err := sources.ScanMediaDir(services.Config.MediaDir)
	if err != nil {
		return fmt.Errorf("scan media dir: %w", err)
	}

	reportBatch(services.Sources.Reconcile(cmd.Context(), desired))
	return nil
}
