package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	TraceStdout    bool   `yaml:"trace_stdout"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName   string              `yaml:"runtime_name"`
	Environment   string              `yaml:"environment"`
	HTTP          HTTPConfig          `yaml:"http"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Bus           BusConfig           `yaml:"bus"`
	Node          NodeConfig          `yaml:"node"`
	TTS           TTSConfig           `yaml:"tts"`
	Audio         AudioConfig         `yaml:"audio"`
	Pronunciation PronunciationConfig `yaml:"pronunciation"`
	Clips         ClipsConfig         `yaml:"clips"`
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

// NodeConfig identifies this process when it announces itself on the bus.
// An empty ID is filled in at startup.
type NodeConfig struct {
	ID                  string `yaml:"id"`
	Role                string `yaml:"role"`
	HeartbeatIntervalMS int    `yaml:"heartbeat_interval_ms"`
}

type TTSConfig struct {
	Mode         string `yaml:"mode"` // gemini, exec, mock
	Command      string `yaml:"command"`
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	DefaultVoice string `yaml:"default_voice"`
	DefaultPitch string `yaml:"default_pitch"`
	DefaultStyle string `yaml:"default_style"`
	TimeoutMS    int    `yaml:"timeout_ms"`
}

// AudioConfig describes the PCM layout returned by the synthesizer.
type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate"`
	Channels      int `yaml:"channels"`
	BitsPerSample int `yaml:"bits_per_sample"`
}

type PronunciationConfig struct {
	RulesPath string `yaml:"rules_path"`
}

type ClipsConfig struct {
	TTLSeconds           int `yaml:"ttl_seconds"`
	MaxClips             int `yaml:"max_clips"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-tts",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Node: NodeConfig{
			Role:                "tts",
			HeartbeatIntervalMS: 5000,
		},
		TTS: TTSConfig{
			Mode:         "gemini",
			Model:        "gemini-2.5-flash-preview-tts",
			DefaultVoice: "Kore",
			DefaultPitch: "normal",
			DefaultStyle: "normal",
			TimeoutMS:    45000,
		},
		Audio: AudioConfig{
			SampleRate:    44100,
			Channels:      1,
			BitsPerSample: 16,
		},
		Clips: ClipsConfig{
			TTLSeconds:           600,
			MaxClips:             256,
			SweepIntervalSeconds: 30,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment. A .env file in the working directory is read first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()
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
	overrideString(&cfg.RuntimeName, "LOQA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LOQA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.TraceStdout, "LOQA_TELEMETRY_TRACE_STDOUT")
	overrideString(&cfg.Telemetry.PrometheusBind, "LOQA_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "LOQA_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "LOQA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Node.ID, "LOQA_NODE_ID")
	overrideString(&cfg.Node.Role, "LOQA_NODE_ROLE")
	overrideInt(&cfg.Node.HeartbeatIntervalMS, "LOQA_NODE_HEARTBEAT_INTERVAL_MS")
	overrideString(&cfg.TTS.Mode, "LOQA_TTS_MODE")
	overrideString(&cfg.TTS.Command, "LOQA_TTS_COMMAND")
	// API_KEY and GEMINI_API_KEY are accepted for compatibility with the
	// browser build, which read its key from API_KEY.
	overrideString(&cfg.TTS.APIKey, "GEMINI_API_KEY")
	overrideString(&cfg.TTS.APIKey, "API_KEY")
	overrideString(&cfg.TTS.APIKey, "LOQA_TTS_API_KEY")
	overrideString(&cfg.TTS.Endpoint, "LOQA_TTS_ENDPOINT")
	overrideString(&cfg.TTS.Model, "LOQA_TTS_MODEL")
	overrideString(&cfg.TTS.DefaultVoice, "LOQA_TTS_DEFAULT_VOICE")
	overrideString(&cfg.TTS.DefaultPitch, "LOQA_TTS_DEFAULT_PITCH")
	overrideString(&cfg.TTS.DefaultStyle, "LOQA_TTS_DEFAULT_STYLE")
	overrideInt(&cfg.TTS.TimeoutMS, "LOQA_TTS_TIMEOUT_MS")
	overrideInt(&cfg.Audio.SampleRate, "LOQA_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "LOQA_AUDIO_CHANNELS")
	overrideInt(&cfg.Audio.BitsPerSample, "LOQA_AUDIO_BITS_PER_SAMPLE")
	overrideString(&cfg.Pronunciation.RulesPath, "LOQA_PRONUNCIATION_RULES_PATH")
	overrideInt(&cfg.Clips.TTLSeconds, "LOQA_CLIPS_TTL_SECONDS")
	overrideInt(&cfg.Clips.MaxClips, "LOQA_CLIPS_MAX")
	overrideInt(&cfg.Clips.SweepIntervalSeconds, "LOQA_CLIPS_SWEEP_INTERVAL_SECONDS")
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
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
		if cfg.Node.HeartbeatIntervalMS <= 0 {
			return errors.New("node.heartbeat_interval_ms must be positive when the bus is enabled")
		}
	}
	switch cfg.TTS.Mode {
	case "gemini", "exec", "mock":
	default:
		return errors.New("tts.mode must be one of gemini|exec|mock")
	}
	if cfg.TTS.Mode == "gemini" && cfg.TTS.Model == "" {
		return errors.New("tts.model must be set when mode=gemini")
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.TTS.TimeoutMS <= 0 {
		return errors.New("tts.timeout_ms must be positive")
	}
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if cfg.Audio.BitsPerSample <= 0 || cfg.Audio.BitsPerSample%8 != 0 {
		return errors.New("audio.bits_per_sample must be a positive multiple of 8")
	}
	if cfg.Clips.TTLSeconds <= 0 {
		return errors.New("clips.ttl_seconds must be positive")
	}
	if cfg.Clips.MaxClips < 0 {
		return errors.New("clips.max_clips must be >= 0")
	}
	if cfg.Clips.SweepIntervalSeconds <= 0 {
		return errors.New("clips.sweep_interval_seconds must be positive")
	}
	return nil
}
