package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/erg0nix/samtale/internal/app"
)

func newSayLastCmd() *cobra.Command {
	sayCmd := &cobra.Command{
		Use:   "say-last",
		Short: "speak the last assistant reply into an audio file",
		RunE:  runSayLast,
	}

	sayCmd.Flags().StringP("out", "o", "", "output audio file (default reply.mp3 in the data dir)")

	return sayCmd
}

func runSayLast(cmd *cobra.Command, args []string) error {
	services, err := newServices(cmd)
	if err != nil {
		return err
	}

	outPath, _ := cmd.Flags().GetString("out")
	sayLast(cmd.Context(), services, outPath)
	return nil
}

func sayLast(ctx context.Context, services *app.Services, outPath string) {
	reply, ok := services.Transcript.LastAssistant()
	if !ok {
		fmt.Println(styledError("nothing to say yet"))
		return
	}

	if outPath == "" {
		outPath = filepath.Join(services.Config.DataDir, "reply.mp3")
	}

	if err := services.Speech.Synthesize(ctx, reply, outPath); err != nil {
		fmt.Println(styledError("speech synthesis failed", err.Error()))
		return
	}

	fmt.Println(styleSuccess.Render("wrote ") + outPath)
}
