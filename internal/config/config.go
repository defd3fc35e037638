package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageTypeMemory = "memory"
	StorageTypeBolt   = "bolt"
)

type Config struct {
	Server        Server        `yaml:"server" json:"server"` // configuration of the public REST server
	Name          string        `yaml:"name" json:"name" env:"APP_NAME" env-default:"process-engine"` // used for OTEL as an application identifier
	Tracing       Tracing       `yaml:"tracing" json:"tracing"`
	Log           Log           `yaml:"log" json:"log"`
	ProcessEngine ProcessEngine `yaml:"processEngine" json:"processEngine"`
	Storage       Storage       `yaml:"storage" json:"storage"`
	Translation   Translation   `yaml:"translation" json:"translation"`
}

type Server struct {
	Context string `yaml:"context" json:"context" env:"REST_API_CONTEXT" env-default:"/"`
	Addr    string `yaml:"addr" json:"addr" env:"REST_API_ADDR" env-default:":8080"`
}

type Tracing struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" env:"OTEL_ENABLED"`
	Name     string `yaml:"name" json:"name" env:"OTEL_NAME" env-default:"process-engine"`
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"OTEL_ENDPOINT"`
	// TransferHeaders are copied from incoming requests into span attributes
	TransferHeaders []string `yaml:"transferHeaders" json:"transferHeaders" env:"OTEL_TRANSFER_HEADERS"`
}

type Log struct {
	Level string `yaml:"level" json:"level" env:"LOG_LEVEL" env-default:"info"`
}

type ProcessEngine struct {
	// Path is the root of the process engine repository,
	// definitions live in {Path}/process/definitions and form payloads in {Path}/form/definitions
	Path string `yaml:"path" json:"path" env:"PROCESS_ENGINE_PATH" env-default:"./process-engine"`
	// DefinitionCacheSize is the amount of parsed process definitions kept in memory
	DefinitionCacheSize int `yaml:"definitionCacheSize" json:"definitionCacheSize" env:"PROCESS_ENGINE_DEFINITION_CACHE_SIZE" env-default:"256"`
	// DefinitionCacheTTL 0 keeps definitions for the lifetime of the service
	DefinitionCacheTTL time.Duration `yaml:"definitionCacheTTL" json:"definitionCacheTTL" env:"PROCESS_ENGINE_DEFINITION_CACHE_TTL" env-default:"0s"`
	ScriptPool         ScriptPool    `yaml:"scriptPool" json:"scriptPool"`
}

type ScriptPool struct {
	MinSize int `yaml:"minSize" json:"minSize" env:"SCRIPT_POOL_MIN_SIZE" env-default:"1"`
	MaxSize int `yaml:"maxSize" json:"maxSize" env:"SCRIPT_POOL_MAX_SIZE" env-default:"8"`
}

type Storage struct {
	Type     string `yaml:"type" json:"type" env:"STORAGE_TYPE" env-default:"memory"`
	BoltPath string `yaml:"boltPath" json:"boltPath" env:"STORAGE_BOLT_PATH"`
}

type Translation struct {
	Language string `yaml:"language" json:"language" env:"TRANSLATION_LANGUAGE" env-default:"en"`
}

func (c Config) defaults() Config {
	if c.Storage.BoltPath == "" {
		c.Storage.BoltPath = filepath.Join(c.ProcessEngine.Path, "instances.db")
	}
	if c.ProcessEngine.ScriptPool.MaxSize < c.ProcessEngine.ScriptPool.MinSize {
		c.ProcessEngine.ScriptPool.MaxSize = c.ProcessEngine.ScriptPool.MinSize
	}
	return c
}

// Validate checks values cleanenv can not check on its own
func (c Config) Validate() error {
	var errJoin error
	switch c.Storage.Type {
	case StorageTypeMemory, StorageTypeBolt:
	default:
		errJoin = errors.Join(errJoin, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}
	if c.ProcessEngine.Path == "" {
		errJoin = errors.Join(errJoin, errors.New("process engine path must be set"))
	}
	if c.ProcessEngine.DefinitionCacheSize <= 0 {
		errJoin = errors.Join(errJoin, errors.New("definition cache size must be positive"))
	}
	return errJoin
}

// InitConfig reads the configuration from the file named by CONFIG_FILE (default ./conf.yaml),
// or from the environment when no such file exists. A .env file in the working directory is loaded first.
func InitConfig() Config {
	c, err := ReadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Printf("Error occurred while reading the configuration: %s\n", err)
		panic(err)
	}
	return c
}

func ReadConfig(fileName string) (Config, error) {
	c := Config{}
	_ = godotenv.Load()
	if fileName == "" {
		wd, err := os.Getwd()
		if err != nil {
			return c, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		fileName = fmt.Sprintf("%s/conf.yaml", wd)
	}
	var err error
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(&c)
		fmt.Printf("Configuration file %s not found. Reading config from ENV.\n", fileName)
	} else {
		err = cleanenv.ReadConfig(fileName, &c)
	}
	if err != nil {
		return c, err
	}
	c = c.defaults()
	return c, c.Validate()
}
