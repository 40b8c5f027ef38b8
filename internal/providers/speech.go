package providers

import (
	"context"
	"fmt"
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/erg0nix/samtale/internal/config"
)

// SpeechClient transcribes spoken questions and synthesizes spoken replies.
type SpeechClient struct {
	client             *openai.Client
	transcriptionModel string
	synthesisModel     string
	voice              string
}

func NewSpeechClient(cfg config.SpeechConfig) *SpeechClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey())
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	transcriptionModel := cfg.TranscriptionModel
	if transcriptionModel == "" {
		transcriptionModel = openai.Whisper1
	}

	synthesisModel := cfg.SynthesisModel
	if synthesisModel == "" {
		synthesisModel = string(openai.TTSModel1)
	}

	voice := cfg.Voice
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}

	return &SpeechClient{
		client:             openai.NewClientWithConfig(clientConfig),
		transcriptionModel: transcriptionModel,
		synthesisModel:     synthesisModel,
		voice:              voice,
	}
}

// Transcribe returns the text spoken in the given audio file.
func (s *SpeechClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	response, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.transcriptionModel,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	return response.Text, nil
}

// Synthesize speaks the given text into an audio file at outPath.
func (s *SpeechClient) Synthesize(ctx context.Context, text, outPath string) error {
	response, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(s.synthesisModel),
		Input: text,
		Voice: openai.SpeechVoice(s.voice),
	})
	if err != nil {
		return fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer response.Close()

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, response); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}

	return nil
}
