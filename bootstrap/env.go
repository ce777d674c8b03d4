package bootstrap

import (
	"log"

	"github.com/spf13/viper"
)

type Env struct {
	AppEnv        string `mapstructure:"APP_ENV"`
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`

	ContextTimeout int `mapstructure:"CONTEXT_TIMEOUT"`

	DBUri  string `mapstructure:"DB_URI"`
	DBName string `mapstructure:"DB_NAME"`

	// ACCESS_TOKEN_SECRET guards the analysis API with bearer tokens when
	// set; empty leaves the API open.
	AccessTokenSecret string `mapstructure:"ACCESS_TOKEN_SECRET"`

	UploadDir       string `mapstructure:"UPLOAD_DIR"`
	MaxUploadSizeMB int64  `mapstructure:"MAX_UPLOAD_SIZE_MB"`

	OpenAIAPIKey string `mapstructure:"OPENAI_API_KEY"`

	// Per-stage wall-clock bounds, seconds. Transcription gets its own,
	// longer bound: the external call dominates its latency.
	StageTimeoutSec      int `mapstructure:"STAGE_TIMEOUT_SEC"`
	TranscribeTimeoutSec int `mapstructure:"TRANSCRIBE_TIMEOUT_SEC"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
}

func NewEnv() *Env {
	env := Env{}
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("no .env file found, reading configuration from environment")
	}

	setDefaults()

	if err := viper.Unmarshal(&env); err != nil {
		log.Fatal("environment can't be loaded: ", err)
	}

	if env.AppEnv == "development" {
		log.Println("the app is running in development env")
	}

	return &env
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("SERVER_ADDRESS", ":8080")
	viper.SetDefault("CONTEXT_TIMEOUT", 10)
	viper.SetDefault("DB_URI", "mongodb://localhost:27017")
	viper.SetDefault("DB_NAME", "music_analyzer")
	viper.SetDefault("UPLOAD_DIR", "/tmp/music_uploads")
	viper.SetDefault("MAX_UPLOAD_SIZE_MB", 100)
	viper.SetDefault("STAGE_TIMEOUT_SEC", 60)
	viper.SetDefault("TRANSCRIBE_TIMEOUT_SEC", 300)
	viper.SetDefault("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"})
}
