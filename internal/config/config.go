// Package config loads the samtale TOML configuration, writing a default
// file on first run.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ChatConfig points at an OpenAI-compatible chat-completions endpoint. The
// API key is read from the named environment variable, never from the file.
type ChatConfig struct {
	Endpoint       string `toml:"endpoint"`
	APIKeyEnv      string `toml:"api_key_env"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (c ChatConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ChatConfig) APIKey() string {
	return apiKeyFromEnv(c.APIKeyEnv)
}

func apiKeyFromEnv(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

// OCRConfig points at the document-extraction service that turns an uploaded
// file into per-page markdown and embedded images.
type OCRConfig struct {
	Endpoint       string `toml:"endpoint"`
	APIKeyEnv      string `toml:"api_key_env"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (c OCRConfig) APIKey() string {
	return apiKeyFromEnv(c.APIKeyEnv)
}

func (c OCRConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// VideoConfig points at the video-understanding service that produces
// timestamped transcript and description segments.
type VideoConfig struct {
	Endpoint       string `toml:"endpoint"`
	APIKeyEnv      string `toml:"api_key_env"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (c VideoConfig) APIKey() string {
	return apiKeyFromEnv(c.APIKeyEnv)
}

func (c VideoConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SpeechConfig covers both transcription of spoken questions and speech
// synthesis of replies.
type SpeechConfig struct {
	Endpoint           string `toml:"endpoint"`
	APIKeyEnv          string `toml:"api_key_env"`
	TranscriptionModel string `toml:"transcription_model"`
	SynthesisModel     string `toml:"synthesis_model"`
	Voice              string `toml:"voice"`
}

func (c SpeechConfig) APIKey() string {
	return apiKeyFromEnv(c.APIKeyEnv)
}

type DebugConfig struct {
	LogRequests  bool   `toml:"log_requests"`
	LogResponses bool   `toml:"log_responses"`
	LogDirectory string `toml:"log_directory"`
}

type Config struct {
	DataDir      string       `toml:"data_dir"`
	MediaDir     string       `toml:"media_dir"`
	PreviewLimit int          `toml:"preview_limit"`
	Chat         ChatConfig   `toml:"chat"`
	OCR          OCRConfig    `toml:"ocr"`
	Video        VideoConfig  `toml:"video"`
	Speech       SpeechConfig `toml:"speech"`
	Debug        DebugConfig  `toml:"debug"`
}

func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		DataDir:      dataDir,
		MediaDir:     filepath.Join(dataDir, "media"),
		PreviewLimit: 500,
		Chat: ChatConfig{
			Endpoint:       "https://generativelanguage.googleapis.com/v1beta/openai",
			APIKeyEnv:      "GEMINI_API_KEY",
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 300,
		},
		OCR: OCRConfig{
			Endpoint:       "http://127.0.0.1:8081",
			APIKeyEnv:      "OCR_API_KEY",
			Model:          "default",
			TimeoutSeconds: 600,
		},
		Video: VideoConfig{
			Endpoint:       "https://generativelanguage.googleapis.com/v1beta/openai",
			APIKeyEnv:      "GEMINI_API_KEY",
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 600,
		},
		Speech: SpeechConfig{
			Endpoint:           "https://api.openai.com/v1",
			APIKeyEnv:          "OPENAI_API_KEY",
			TranscriptionModel: "whisper-1",
			SynthesisModel:     "tts-1",
			Voice:              "alloy",
		},
		Debug: DebugConfig{
			LogRequests:  false,
			LogResponses: false,
			LogDirectory: filepath.Join(dataDir, "debug"),
		},
	}
}

func LoadOrCreate(path string) (Config, error) {
	config := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return config, err
			}

			configData, err := toml.Marshal(config)
			if err != nil {
				return config, err
			}

			if err := os.WriteFile(path, configData, 0o644); err != nil {
				return config, err
			}

			return config, nil
		}

		return config, err
	}

	configData, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := toml.Unmarshal(configData, &config); err != nil {
		return config, err
	}

	config.DataDir = expandPath(config.DataDir)
	config.MediaDir = expandPath(config.MediaDir)
	config.Chat.Endpoint = strings.TrimSpace(config.Chat.Endpoint)

	if config.Chat.Endpoint == "" {
		return config, errors.New("chat.endpoint is required")
	}

	if config.PreviewLimit <= 0 {
		config.PreviewLimit = 500
	}

	return config, nil
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()

	if homeDir == "" {
		return ".samtale"
	}

	return filepath.Join(homeDir, ".samtale")
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()

		if homeDir != "" {
			trimmed := strings.TrimPrefix(path, "~")
			trimmed = strings.TrimPrefix(trimmed, string(os.PathSeparator))

			return filepath.Join(homeDir, trimmed)
		}
	}

	return path
}
