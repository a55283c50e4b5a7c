package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Neo4j     Neo4jConfig
	Embedding EmbeddingConfig
	Engine    EngineConfig
	Alignment AlignmentConfig
	Ontology  OntologyConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type EmbeddingConfig struct {
	Provider      string
	Model         string
	APIKey        string
	Dimensions    int
	TimeoutSec    int
	MaxAttempts   int
	CacheTTLHours int
}

// EngineConfig carries the tunables shared by the perception comparator and
// the pending-item resolver. Thresholds and windows are defaults only: every
// engine call may override them, so different call sites can run different
// freshness windows against the same data.
type EngineConfig struct {
	MisalignmentThreshold float64
	FreshnessWindowHours  int
	BasePriority          int
	MissingBonus          int
	MisalignedBonus       int
	StaleBonus            int
	ImportantBonus        int
	MaxConcurrentEmbeds   int
}

type AlignmentConfig struct {
	Backend string
}

type OntologyConfig struct {
	Path string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/alignlens")

	viper.SetEnvPrefix("ALIGNLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate rejects bad engine tunables at load time so they never surface as
// per-call runtime errors.
func (c *Config) Validate() error {
	if c.Engine.MisalignmentThreshold < 0 || c.Engine.MisalignmentThreshold > 1 {
		return fmt.Errorf("engine.misalignmentThreshold must be in [0,1], got %f", c.Engine.MisalignmentThreshold)
	}
	if c.Engine.FreshnessWindowHours <= 0 {
		return fmt.Errorf("engine.freshnessWindowHours must be positive, got %d", c.Engine.FreshnessWindowHours)
	}
	if c.Engine.MaxConcurrentEmbeds < 1 {
		return fmt.Errorf("engine.maxConcurrentEmbeds must be at least 1, got %d", c.Engine.MaxConcurrentEmbeds)
	}
	if c.Engine.BasePriority <= 0 {
		return fmt.Errorf("engine.basePriority must be positive, got %d", c.Engine.BasePriority)
	}
	for name, bonus := range map[string]int{
		"engine.missingBonus":    c.Engine.MissingBonus,
		"engine.misalignedBonus": c.Engine.MisalignedBonus,
		"engine.staleBonus":      c.Engine.StaleBonus,
		"engine.importantBonus":  c.Engine.ImportantBonus,
	} {
		if bonus < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, bonus)
		}
	}
	// Missing beats misaligned beats stale; an inverted ordering would
	// silently reshuffle the urgency queue.
	if c.Engine.MissingBonus <= c.Engine.MisalignedBonus {
		return fmt.Errorf("engine.missingBonus (%d) must exceed engine.misalignedBonus (%d)",
			c.Engine.MissingBonus, c.Engine.MisalignedBonus)
	}
	if c.Engine.MisalignedBonus <= c.Engine.StaleBonus {
		return fmt.Errorf("engine.misalignedBonus (%d) must exceed engine.staleBonus (%d)",
			c.Engine.MisalignedBonus, c.Engine.StaleBonus)
	}
	if c.Embedding.MaxAttempts < 1 {
		return fmt.Errorf("embedding.maxAttempts must be at least 1, got %d", c.Embedding.MaxAttempts)
	}
	if c.Embedding.TimeoutSec <= 0 {
		return fmt.Errorf("embedding.timeoutSec must be positive, got %d", c.Embedding.TimeoutSec)
	}
	switch c.Alignment.Backend {
	case "sqlite", "neo4j":
	default:
		return fmt.Errorf("alignment.backend must be sqlite or neo4j, got %q", c.Alignment.Backend)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("sqlite.path", "./data/alignlens.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)
	viper.SetDefault("embedding.timeoutSec", 15)
	viper.SetDefault("embedding.maxAttempts", 3)
	viper.SetDefault("embedding.cacheTTLHours", 720)

	viper.SetDefault("engine.misalignmentThreshold", 0.6)
	viper.SetDefault("engine.freshnessWindowHours", 168)
	viper.SetDefault("engine.basePriority", 100)
	viper.SetDefault("engine.missingBonus", 50)
	viper.SetDefault("engine.misalignedBonus", 30)
	viper.SetDefault("engine.staleBonus", 15)
	viper.SetDefault("engine.importantBonus", 10)
	viper.SetDefault("engine.maxConcurrentEmbeds", 4)

	viper.SetDefault("alignment.backend", "sqlite")

	viper.SetDefault("ontology.path", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
