package config

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

type App struct {
	Name       string
	Version    string
	GitHash    string
	LongName   string
	InstanceId string
}

type Config struct {
	App        App        `yaml:"-"`
	HTTP       HTTP       `yaml:"http,omitempty"`
	Provider   Provider   `yaml:"provider,omitempty"`
	Assistant  Assistant  `yaml:"assistant,omitempty"`
	Recorder   Recorder   `yaml:"recorder,omitempty"`
	Store      Store      `yaml:"store,omitempty"`
	PubSub     PubSub     `yaml:"pubsub,omitempty"`
	Prometheus Prometheus `yaml:"prometheus,omitempty"`
	Debug      bool       `yaml:"debug,omitempty"`
}

func (cfg *Config) GetDefaults() *Config {
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets the default values
func (cfg *Config) SetDefaults() {
	if cfg.App.Name == "" {
		var err error
		if cfg.App.Name, err = os.Executable(); err != nil {
			log.Error(err)
			cfg.App.Name = "unknown"
		}
	}

	cfg.HTTP = HTTP{
		Port:        8000,
		CORSOrigins: []string{"http://localhost:3000"},
	}
	cfg.Provider = Provider{
		APIURL:              "https://api.daily.co/v1",
		RoomExpiry:          24 * time.Hour,
		MaxParticipants:     20,
		EnableRecording:     "cloud",
		RecordingResolution: "1920x1080",
		RequestTimeout:      10 * time.Second,
	}
	cfg.Assistant = Assistant{
		APIURL:      "https://api.openai.com/v1",
		Model:       "gpt-4",
		MaxTokens:   1500,
		Temperature: 0.7,
	}
	cfg.Recorder = Recorder{
		Directory:       "recordings",
		DirFileMode:     "0700",
		FileMode:        "0600",
		FrameRate:       30,
		SegmentInterval: time.Second,
		MimeType:        "video/webm",
	}
	cfg.Store.Adapter = "memory"
	cfg.PubSub.Channels = Channels{
		Recordings: "recordings-" + cfg.App.Name,
	}
	cfg.PubSub.Adapter = "redis"
	cfg.PubSub.Adapters = make(map[string]interface{})
	cfg.PubSub.Adapters["redis"] = &Redis{
		Address:  ":6379",
		Network:  "tcp",
		Password: "",
	}
	cfg.Prometheus = Prometheus{
		Enable:        false,
		ListenAddress: "127.0.0.1:3200",
	}
}

type HTTP struct {
	Port        int      `yaml:"port,omitempty"`
	CORSOrigins []string `yaml:"corsOrigins,omitempty"`
}

// Provider holds the third-party video API settings. The API key and secret
// are server-side credentials and must never reach the browser.
type Provider struct {
	APIURL              string        `yaml:"apiUrl,omitempty"`
	APIKey              string        `yaml:"apiKey,omitempty"`
	APISecret           string        `yaml:"apiSecret,omitempty"`
	RoomExpiry          time.Duration `yaml:"roomExpiry,omitempty"`
	MaxParticipants     int           `yaml:"maxParticipants,omitempty"`
	EnableRecording     string        `yaml:"enableRecording,omitempty"`
	RecordingResolution string        `yaml:"recordingResolution,omitempty"`
	RequestTimeout      time.Duration `yaml:"requestTimeout,omitempty"`
}

type Assistant struct {
	APIURL      string  `yaml:"apiUrl,omitempty"`
	APIKey      string  `yaml:"apiKey,omitempty"`
	Model       string  `yaml:"model,omitempty"`
	MaxTokens   int     `yaml:"maxTokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

type Recorder struct {
	Directory       string        `yaml:"directory,omitempty"`
	DirFileMode     string        `yaml:"dirFileMode,omitempty"`
	FileMode        string        `yaml:"fileMode,omitempty"`
	FrameRate       int           `yaml:"frameRate,omitempty"`
	SegmentInterval time.Duration `yaml:"segmentInterval,omitempty"`
	MimeType        string        `yaml:"mimeType,omitempty"`
	UploadURL       string        `yaml:"uploadUrl,omitempty"`
}

type Store struct {
	Adapter string `yaml:"adapter,omitempty"`
	DSN     string `yaml:"dsn,omitempty"`
}

type Redis struct {
	Address  string `yaml:"address,omitempty"`
	Network  string `yaml:"network,omitempty"`
	Password string `yaml:"password,omitempty"`
}

type PubSub struct {
	Channels Channels `yaml:"channels,omitempty"`
	Adapter  string   `yaml:"adapter,omitempty"`
	Adapters map[string]interface{}
}

type Channels struct {
	Recordings string `yaml:"recordings,omitempty"`
}

type Prometheus struct {
	Enable        bool   `yaml:"enable,omitempty"`
	ListenAddress string `yaml:"listenAddress,omitempty"`
}
