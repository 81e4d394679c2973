package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:           "wss://api.elevenlabs.io/v1/speech-to-text/realtime",
			ModelID:           "scribe_v1_realtime",
			LanguageCode:      "",
			IncludeTimestamps: false,
			VADCommitStrategy: "",
			ConnectTimeoutMS:  5000,
		},
		Audio: AudioConfig{
			InputDeviceID: "default",
			Gain:          1.0,
		},
		Hotkeys: HotkeyConfig{
			PushToTalk: "CommandOrControl+Shift+Space",
			Cancel:     "CommandOrControl+Shift+Escape",
			ToggleMode: "",
		},
		Behavior: BehaviorConfig{
			InjectionStrategy:     "auto",
			AutoThreshold:         20,
			PasteDelayMS:          100,
			PreInjectionDelayMS:   0,
			AutoInject:            true,
			ShowOverlay:           true,
			MinimizeToTray:        true,
			ProcessingTimeoutSecs: 30,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
