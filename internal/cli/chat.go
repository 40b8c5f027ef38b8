package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erg0nix/samtale/internal/app"
	"github.com/erg0nix/samtale/internal/sources"
	"github.com/erg0nix/samtale/internal/turn"
)

func newChatCmd() *cobra.Command {
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "interactive conversation over the active sources",
		RunE:  runChat,
	}

	chatCmd.Flags().Bool("watch", false, "watch the media directory and sync sources automatically")
	chatCmd.Flags().String("voice-in", "", "transcribe this audio file and ask it as the first question")

	return chatCmd
}

func runChat(cmd *cobra.Command, args []string) error {
	services, err := newServices(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		watcher, err := sources.NewDirWatcher(services.Sources, services.Config.MediaDir)
		if err != nil {
			fmt.Println(styledError("watch failed", err.Error()))
		} else {
			go watcher.Run(ctx)
			fmt.Println(styleDim.Render("watching " + services.Config.MediaDir))
		}
	}

	printSourceSummary(services)

	if voicePath, _ := cmd.Flags().GetString("voice-in"); voicePath != "" {
		question, err := services.Speech.Transcribe(ctx, voicePath)
		if err != nil {
			fmt.Println(styledError("transcription failed", err.Error()))
		} else {
			fmt.Println(stylePrompt.Render("> ") + question)
			askStreaming(ctx, services, question)
		}
	}

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print(stylePrompt.Render("> "))

		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			if quit := handleCommand(ctx, services, line); quit {
				return nil
			}
			continue
		}

		// A pasted YouTube link is an ingestion request, not a question.
		if uploads := sources.ParseYouTubeURLs(line); len(uploads) > 0 {
			reportBatch(services.Sources.Add(ctx, uploads...))
			continue
		}

		askStreaming(ctx, services, line)
	}
}

// askStreaming runs one full turn, printing increments as they arrive.
func askStreaming(ctx context.Context, services *app.Services, question string) {
	if err := services.Engine.Submit(question); err != nil {
		fmt.Println(styledError("submit failed", err.Error()))
		return
	}

	updates, err := services.Engine.Drive(ctx)
	if err != nil {
		fmt.Println(styledError("drive failed", err.Error()))
		return
	}

	printed := 0
	for update := range updates {
		switch update.State {
		case turn.StateStreaming:
			fmt.Print(update.Text[printed:])
			printed = len(update.Text)
		case turn.StateFinalized:
			fmt.Print(update.Text[printed:])
			fmt.Println()
		case turn.StateFailed:
			fmt.Println(styledError("turn failed", update.Err))
		}
	}
}

// handleCommand runs one colon command; returns true on :quit.
func handleCommand(ctx context.Context, services *app.Services, line string) bool {
	fields := strings.Fields(line)
	command := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, command))

	switch command {
	case ":quit", ":q", ":exit":
		return true

	case ":sources":
		printSources(services)

	case ":add":
		if rest == "" {
			fmt.Println(styledError("usage: :add <file path>"))
			return false
		}
		upload, err := uploadForPath(rest)
		if err != nil {
			fmt.Println(styledError("add failed", err.Error()))
			return false
		}
		reportBatch(services.Sources.Add(ctx, upload))

	case ":remove":
		if rest == "" {
			fmt.Println(styledError("usage: :remove <source name>"))
			return false
		}
		reportBatch(services.Sources.Remove(ctx, rest))

	case ":voice":
		if rest == "" {
			fmt.Println(styledError("usage: :voice <audio file>"))
			return false
		}
		question, err := services.Speech.Transcribe(ctx, rest)
		if err != nil {
			fmt.Println(styledError("transcription failed", err.Error()))
			return false
		}
		fmt.Println(styleDim.Render("heard: ") + question)
		askStreaming(ctx, services, question)

	case ":say":
		sayLast(ctx, services, rest)

	case ":clear":
		if err := services.ClearChat(); err != nil {
			fmt.Println(styledError("clear failed", err.Error()))
			return false
		}
		fmt.Println(styleSuccess.Render("chat cleared") + styleDim.Render(" (sources kept)"))

	case ":reset":
		if err := services.ResetAll(); err != nil {
			fmt.Println(styledError("reset failed", err.Error()))
			return false
		}
		fmt.Println(styleSuccess.Render("conversation and sources reset"))

	default:
		fmt.Println(styledError("unknown command "+command,
			":add :remove :sources :voice :say :clear :reset :quit"))
	}

	return false
}

func uploadForPath(path string) (sources.Upload, error) {
	if _, err := os.Stat(path); err != nil {
		return sources.Upload{}, err
	}

	kind, ok := sources.KindForPath(path)
	if !ok {
		return sources.Upload{}, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}

	return sources.Upload{Name: filepath.Base(path), Kind: kind, Path: path}, nil
}

func reportBatch(result sources.BatchResult) {
	for _, name := range result.Added {
		fmt.Println(styleSuccess.Render("added ") + styleSourceName.Render(name))
	}
	for _, name := range result.Removed {
		fmt.Println(styleWarning.Render("removed ") + styleSourceName.Render(name))
	}
	for _, name := range result.Failed {
		fmt.Println(styledError("failed " + name))
	}
	if result.Empty() {
		fmt.Println(styleDim.Render("nothing to do"))
	}
}

func printSourceSummary(services *app.Services) {
	active := services.Sources.Active()
	if len(active) == 0 {
		fmt.Println(styleDim.Render("no sources yet; :add a file or paste a YouTube link"))
		return
	}

	names := make([]string, 0, len(active))
	for _, src := range active {
		names = append(names, src.Name)
	}
	fmt.Println(styleDim.Render(fmt.Sprintf("%d sources: ", len(active))) + strings.Join(names, ", "))
}

func printSources(services *app.Services) {
	active := services.Sources.Active()
	if len(active) == 0 {
		fmt.Println(styleDim.Render("no active sources"))
		return
	}

	t := newTable("kind", "name", "items")
	for _, src := range active {
		t.Row(string(src.Kind), src.Name, fmt.Sprintf("%d", src.ItemCount()))
	}
	fmt.Println(t.Render())
}
