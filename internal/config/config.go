package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type STTConfig struct {
	Mode      string `yaml:"mode"` // whisper, exec, mock
	ModelPath string `yaml:"model_path"`
	Command   string `yaml:"command"`
	Language  string `yaml:"language"`
	Translate bool   `yaml:"translate"`
}

type StreamConfig struct {
	SampleRate     int     `yaml:"sample_rate"`
	ChunkSeconds   float64 `yaml:"chunk_seconds"`
	PartialEveryMS int     `yaml:"partial_every_ms"`
	MinAudioMS     int     `yaml:"min_audio_ms"`
	Workers        int     `yaml:"workers"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type AudioConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
	ArchiveDir string `yaml:"archive_dir"`
}

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	HTTP      HTTPConfig      `yaml:"http"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	STT       STTConfig       `yaml:"stt"`
	Stream    StreamConfig    `yaml:"stream"`
	Store     StoreConfig     `yaml:"store"`
	Bus       BusConfig       `yaml:"bus"`
	Audio     AudioConfig     `yaml:"audio"`
}

func Default() Config {
	return Config{
		Service: ServiceConfig{
			Name:        "voicemark-sidecar",
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 3001,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		STT: STTConfig{
			Mode:      "whisper",
			ModelPath: "./models/ggml-small.en.bin",
			Language:  "en",
		},
		Stream: StreamConfig{
			SampleRate:     16000,
			ChunkSeconds:   6.0,
			PartialEveryMS: 500,
			MinAudioMS:     500,
			Workers:        4,
		},
		Store: StoreConfig{
			Path:          "./data/voicemark-transcripts.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Audio: AudioConfig{
			FFmpegPath: "ffmpeg",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Service.Name, "VOICEMARK_SERVICE_NAME")
	overrideString(&cfg.Service.Environment, "VOICEMARK_SERVICE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOICEMARK_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOICEMARK_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOICEMARK_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOICEMARK_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOICEMARK_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.STT.Mode, "VOICEMARK_STT_MODE")
	overrideString(&cfg.STT.ModelPath, "VOICEMARK_MODEL_PATH")
	overrideString(&cfg.STT.Command, "VOICEMARK_STT_COMMAND")
	overrideString(&cfg.STT.Language, "VOICEMARK_STT_LANGUAGE")
	overrideBool(&cfg.STT.Translate, "VOICEMARK_STT_TRANSLATE")
	overrideInt(&cfg.Stream.SampleRate, "VOICEMARK_STREAM_SAMPLE_RATE")
	overrideFloat(&cfg.Stream.ChunkSeconds, "VOICEMARK_STREAM_CHUNK_SECONDS")
	overrideInt(&cfg.Stream.PartialEveryMS, "VOICEMARK_STREAM_PARTIAL_EVERY_MS")
	overrideInt(&cfg.Stream.MinAudioMS, "VOICEMARK_STREAM_MIN_AUDIO_MS")
	overrideInt(&cfg.Stream.Workers, "VOICEMARK_STREAM_WORKERS")
	overrideString(&cfg.Store.Path, "VOICEMARK_STORE_PATH")
	overrideString(&cfg.Store.RetentionMode, "VOICEMARK_STORE_RETENTION_MODE")
	overrideInt(&cfg.Store.RetentionDays, "VOICEMARK_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxSessions, "VOICEMARK_STORE_MAX_SESSIONS")
	overrideBool(&cfg.Store.VacuumOnStart, "VOICEMARK_STORE_VACUUM_ON_START")
	overrideBool(&cfg.Bus.Enabled, "VOICEMARK_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "VOICEMARK_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOICEMARK_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VOICEMARK_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOICEMARK_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOICEMARK_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOICEMARK_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOICEMARK_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOICEMARK_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Audio.FFmpegPath, "VOICEMARK_AUDIO_FFMPEG_PATH")
	overrideString(&cfg.Audio.ArchiveDir, "VOICEMARK_AUDIO_ARCHIVE_DIR")

	// Alias kept for the original deployment scripts.
	overrideInt(&cfg.HTTP.Port, "VOICEMARK_PORT")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.Service.Name == "" {
		return errors.New("service.name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.STT.Mode {
	case "whisper", "exec", "mock":
	default:
		return errors.New("stt.mode must be one of whisper|exec|mock")
	}
	if cfg.STT.Mode == "whisper" && cfg.STT.ModelPath == "" {
		return errors.New("stt.model_path must be set when mode=whisper")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	if cfg.Stream.SampleRate != 16000 {
		return errors.New("stream.sample_rate must be 16000")
	}
	if cfg.Stream.ChunkSeconds <= 0 {
		return errors.New("stream.chunk_seconds must be positive")
	}
	if cfg.Stream.PartialEveryMS <= 0 {
		return errors.New("stream.partial_every_ms must be positive")
	}
	if cfg.Stream.MinAudioMS < 0 {
		return errors.New("stream.min_audio_ms must be >= 0")
	}
	if cfg.Stream.Workers <= 0 {
		return errors.New("stream.workers must be >= 1")
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	switch cfg.Store.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Audio.FFmpegPath == "" {
		return errors.New("audio.ffmpeg_path must not be empty")
	}
	return nil
}
