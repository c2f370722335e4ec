package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "jobmatch"
	envPrefix = "JOBMATCH"
)

type Config struct {
	Database  *DatabaseConfig  `mapstructure:"database"`
	AI        *AIConfig        `mapstructure:"ai"`
	Documents *DocumentsConfig `mapstructure:"documents"`
	Skills    *SkillsConfig    `mapstructure:"skills"`
	Match     *MatchConfig     `mapstructure:"match"`
	Mail      *MailConfig      `mapstructure:"mail"`
	Files     *FilesConfig     `mapstructure:"files"`
}

type DatabaseConfig struct {
	// Driver is postgres, mysql or memory.
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	DSNFile      string `mapstructure:"dsn-file"`
	MaxOpenConns int    `mapstructure:"max-open-conns"`
	MaxIdleConns int    `mapstructure:"max-idle-conns"`
	LogLevel     string `mapstructure:"log-level"`
}

type AIConfig struct {
	Provider   string            `mapstructure:"provider"`
	Gemini     *GeminiConfig     `mapstructure:"gemini"`
	Extraction *ExtractionConfig `mapstructure:"extraction"`
}

type GeminiConfig struct {
	APIKey          string  `mapstructure:"api-key"`
	APIKeyFile      string  `mapstructure:"api-key-file"`
	Model           string  `mapstructure:"model"`
	Temperature     float32 `mapstructure:"temperature"`
	TopP            float32 `mapstructure:"top-p"`
	TopK            float32 `mapstructure:"top-k"`
	MaxOutputTokens int32   `mapstructure:"max-output-tokens"`
	SafetyThreshold string  `mapstructure:"safety-threshold"`
	MaxRetries      int     `mapstructure:"max-retries"`
	MaxLogLength    int     `mapstructure:"max-log-length"`
}

type ExtractionConfig struct {
	MaxAttempts    int           `mapstructure:"max-attempts"`
	InitialBackoff time.Duration `mapstructure:"initial-backoff"`
	MaxBackoff     time.Duration `mapstructure:"max-backoff"`
	CallTimeout    time.Duration `mapstructure:"call-timeout"`
}

type DocumentsConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type SkillsConfig struct {
	SynonymsFile string `mapstructure:"synonyms-file"`
	// Lookup is exact or fuzzy.
	Lookup string `mapstructure:"lookup"`
}

type MatchConfig struct {
	ShortlistThreshold float64 `mapstructure:"shortlist-threshold"`
	SearchThreshold    int     `mapstructure:"search-threshold"`
}

type MailConfig struct {
	// Transport is log, smtp or amqp.
	Transport    string        `mapstructure:"transport"`
	From         string        `mapstructure:"from"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue-size"`
	MaxRetries   int           `mapstructure:"max-retries"`
	RetryBackoff time.Duration `mapstructure:"retry-backoff"`
	SMTP         *SMTPConfig   `mapstructure:"smtp"`
	AMQP         *AMQPConfig   `mapstructure:"amqp"`
}

type SMTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password-file"`
}

type AMQPConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing-key"`
}

type FilesConfig struct {
	// Backend is local, minio or none.
	Backend string       `mapstructure:"backend"`
	Dir     string       `mapstructure:"dir"`
	MinIO   *MinIOConfig `mapstructure:"minio"`
}

type MinIOConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access-key"`
	SecretKey     string `mapstructure:"secret-key"`
	SecretKeyFile string `mapstructure:"secret-key-file"`
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	UseSSL        bool   `mapstructure:"use-ssl"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobmatch ingests résumés and job descriptions and matches candidates to jobs",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.log-level", "warn")
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.temperature", 0.2)
	viper.SetDefault("ai.gemini.safety-threshold", "block_only_high")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 2000)
	viper.SetDefault("ai.extraction.max-attempts", 5)
	viper.SetDefault("ai.extraction.initial-backoff", time.Second)
	viper.SetDefault("ai.extraction.max-backoff", 30*time.Second)
	viper.SetDefault("ai.extraction.call-timeout", 30*time.Second)
	viper.SetDefault("documents.timeout", 30*time.Second)
	viper.SetDefault("skills.lookup", "exact")
	viper.SetDefault("match.shortlist-threshold", 0.4)
	viper.SetDefault("match.search-threshold", 70)
	viper.SetDefault("mail.transport", "log")
	viper.SetDefault("mail.workers", 2)
	viper.SetDefault("mail.queue-size", 64)
	viper.SetDefault("mail.max-retries", 3)
	viper.SetDefault("mail.retry-backoff", 2*time.Second)
	viper.SetDefault("mail.smtp.port", 587)
	viper.SetDefault("mail.amqp.exchange", "jobmatch.mail")
	viper.SetDefault("mail.amqp.routing-key", "mail")
	viper.SetDefault("files.backend", "local")
	viper.SetDefault("files.dir", "uploads")

	// AutomaticEnv only reaches Unmarshal for keys viper already knows.
	for _, key := range []string{
		"database.dsn", "database.dsn-file",
		"ai.gemini.api-key", "ai.gemini.api-key-file", "ai.gemini.model",
		"mail.from", "mail.smtp.host", "mail.smtp.username", "mail.smtp.password", "mail.smtp.password-file",
		"mail.amqp.url",
		"files.minio.endpoint", "files.minio.access-key", "files.minio.secret-key", "files.minio.secret-key-file",
		"files.minio.bucket", "files.minio.region",
	} {
		viper.SetDefault(key, "")
	}
}

func initConfig() {
	// A missing .env is fine, a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config the file is optional; env and defaults still apply.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
