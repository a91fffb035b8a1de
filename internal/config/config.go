package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/aide/internal/types"
)

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	Timezone string `json:"timezone"`

	Assistant struct {
		BaseURL     string `json:"base_url"`
		APIKey      string `json:"api_key"`
		AssistantID string `json:"assistant_id"`
		Model       string `json:"model"`
	} `json:"assistant"`

	Poll struct {
		IntervalSeconds int `json:"interval_seconds"`
		MaxAttempts     int `json:"max_attempts"`
	} `json:"poll"`

	ThrottleSeconds  int `json:"throttle_seconds"`
	MaxConcurrent    int `json:"max_concurrent"`
	MaxOutputTokens  int `json:"max_output_tokens"`
	MessageCharLimit int `json:"message_char_limit"`

	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`

	Google struct {
		AccessToken string `json:"access_token"`
		GmailUser   string `json:"gmail_user"`
	} `json:"google"`

	Brave struct {
		APIKey string `json:"api_key"`
	} `json:"brave"`

	Weather struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Place     string  `json:"place"`
	} `json:"weather"`

	Calendars []types.Candidate `json:"calendars"`

	Briefing struct {
		Enabled bool   `json:"enabled"`
		Cron    string `json:"cron"`
		ChatID  int64  `json:"chat_id"`
	} `json:"briefing"`

	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".aide"),
		LogLevel: "info",
		Timezone: "America/Toronto",
	}
	cfg.Assistant.BaseURL = "https://api.openai.com/v1"
	cfg.Assistant.Model = "gpt-4o"
	cfg.Poll.IntervalSeconds = 2
	cfg.Poll.MaxAttempts = 20
	cfg.ThrottleSeconds = 5
	cfg.MaxConcurrent = 4
	cfg.MaxOutputTokens = 4000
	cfg.MessageCharLimit = 2000
	cfg.Weather.Latitude = 43.6532
	cfg.Weather.Longitude = -79.3832
	cfg.Weather.Place = "Toronto"
	cfg.Calendars = []types.Candidate{
		{Name: "Personal", SourceID: "primary", Kind: "personal"},
	}
	cfg.Briefing.Cron = "30 7 * * *"
	cfg.HTTP.Listen = ":8090"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.Assistant.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.Assistant.BaseURL = baseURL
	}
	if assistantID := os.Getenv("ASSISTANT_ID"); assistantID != "" {
		cfg.Assistant.AssistantID = assistantID
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if braveKey := os.Getenv("BRAVE_API_KEY"); braveKey != "" {
		cfg.Brave.APIKey = braveKey
	}
	if googleToken := os.Getenv("GOOGLE_ACCESS_TOKEN"); googleToken != "" {
		cfg.Google.AccessToken = googleToken
	}
	if gmailUser := os.Getenv("GMAIL_USER"); gmailUser != "" {
		cfg.Google.GmailUser = gmailUser
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
