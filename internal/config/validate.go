package config

import (
	"fmt"
	"strings"
)

var validStrategies = map[string]struct{}{
	"auto":           {},
	"keyboard":       {},
	"clipboard":      {},
	"clipboard-only": {},
}

var validLogLevels = map[string]struct{}{
	"trace": {},
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		return nil, fmt.Errorf("api.base_url must not be empty")
	}
	if !strings.HasPrefix(cfg.API.BaseURL, "wss://") && !strings.HasPrefix(cfg.API.BaseURL, "ws://") {
		return nil, fmt.Errorf("api.base_url must be a ws:// or wss:// URL")
	}
	if strings.TrimSpace(cfg.API.ModelID) == "" {
		return nil, fmt.Errorf("api.model_id must not be empty")
	}
	if cfg.API.ConnectTimeoutMS <= 0 {
		return nil, fmt.Errorf("api.connect_timeout_ms must be > 0")
	}
	if strings.TrimSpace(cfg.API.APIKey) == "" {
		warnings = append(warnings, Warning{
			Message: "api.api_key is not set; set it in config, .env, or ELEVENLABS_API_KEY",
		})
	}

	if cfg.Audio.Gain <= 0 {
		return nil, fmt.Errorf("audio.gain must be > 0")
	}
	if cfg.Audio.SilenceThreshold < 0 || cfg.Audio.SilenceThreshold > 1 {
		return nil, fmt.Errorf("audio.silence_threshold must be in [0, 1]")
	}

	if strings.TrimSpace(cfg.Hotkeys.PushToTalk) == "" {
		return nil, fmt.Errorf("hotkeys.push_to_talk must not be empty")
	}
	if strings.TrimSpace(cfg.Hotkeys.Cancel) == "" {
		return nil, fmt.Errorf("hotkeys.cancel must not be empty")
	}

	strategy := strings.ToLower(strings.TrimSpace(cfg.Behavior.InjectionStrategy))
	if _, ok := validStrategies[strategy]; !ok {
		return nil, fmt.Errorf("behavior.injection_strategy must be one of: auto, keyboard, clipboard, clipboard-only")
	}
	if cfg.Behavior.AutoThreshold <= 0 {
		return nil, fmt.Errorf("behavior.auto_threshold must be > 0")
	}
	if cfg.Behavior.PasteDelayMS < 0 {
		return nil, fmt.Errorf("behavior.paste_delay_ms must be >= 0")
	}
	if cfg.Behavior.PreInjectionDelayMS < 0 {
		return nil, fmt.Errorf("behavior.pre_injection_delay_ms must be >= 0")
	}
	if cfg.Behavior.ProcessingTimeoutSecs <= 0 {
		return nil, fmt.Errorf("behavior.processing_timeout_secs must be > 0")
	}

	level := strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if _, ok := validLogLevels[level]; !ok {
		return nil, fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}

	return warnings, nil
}
