package initializers

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/magictoy/arachni/clients/dispatcher"
	"github.com/magictoy/arachni/pkg/generators"
	"github.com/magictoy/arachni/pkg/inputlist"
	"github.com/magictoy/arachni/pkg/retrier"
	"github.com/magictoy/arachni/scan"
)

// AppConfig represents values taken from environment variables, with an
// optional YAML file overlay. Forked slaves receive a clean namespace
// holding only APP_ADDR and APP_TOKEN.
type AppConfig struct {
	Env            string `yaml:"env"`
	ServiceKey     string `yaml:"-"`
	Addr           string `yaml:"addr"`
	Token          string `yaml:"token"`
	DispatcherAddr string `yaml:"dispatcher_addr"`
	PoolSize       int    `yaml:"pool_size"`
	PageQueueFile  string `yaml:"page_queue_file"`
	CertFile       string `yaml:"cert_file"`
	KeyFile        string `yaml:"key_file"`
}

// maxSeedPages bounds how many pages a seed list may inject.
const maxSeedPages = 50000

// FromEnv reads the config for serviceKey from APP_* variables and, when
// APP_CONFIG points at a YAML file, merges that file in first.
func FromEnv(serviceKey string) *AppConfig {
	cfg := &AppConfig{ServiceKey: serviceKey}

	if path := os.Getenv("APP_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("unable to read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("unable to parse config file")
		}
	}

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("APP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("APP_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("APP_DISPATCHER"); v != "" {
		cfg.DispatcherAddr = v
	}
	if v := os.Getenv("APP_PAGE_QUEUE"); v != "" {
		cfg.PageQueueFile = v
	}
	if v := os.Getenv("APP_POOL_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			log.Fatal().Err(err).Msg("APP_POOL_SIZE is not a number")
		}
		cfg.PoolSize = size
	}

	if cfg.Token == "" {
		cfg.Token = generators.Token()
	}
	return cfg
}

// Logger builds the process-wide service-tagged logger.
func Logger(serviceKey string) zerolog.Logger {
	zerolog.TimeFieldFormat = ""
	logger := log.With().Str("service", serviceKey).Logger()
	log.Logger = logger
	return logger
}

// SeedPages parses the configured seed page list, empty when none is
// configured. Invalid lines are logged and skipped.
func SeedPages(appConfig *AppConfig) []string {
	if appConfig.PageQueueFile == "" {
		return nil
	}

	f, err := os.Open(appConfig.PageQueueFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", appConfig.PageQueueFile).Msg("unable to read page queue file")
	}
	defer f.Close()

	pages, parseErrors := inputlist.ParsePages(f, maxSeedPages)
	for _, parseError := range parseErrors {
		log.Warn().Int("line", parseError.LineNumber).Str("value", parseError.Line).
			Err(parseError.Err).Msg("skipping seed page")
	}
	if pages == nil {
		log.Fatal().Str("path", appConfig.PageQueueFile).Msg("seed page list is too large")
	}
	return pages
}

// DispatcherClient connects to the configured dispatcher and waits until
// it answers alive, or nil when no dispatcher is configured.
func DispatcherClient(ctx context.Context, appConfig *AppConfig) scan.DispatcherService {
	if appConfig.DispatcherAddr == "" {
		return nil
	}

	client := dispatcher.New(appConfig.DispatcherAddr, appConfig.Token)
	err := retrier.RetryUntil(func() error {
		return client.Alive(ctx)
	}, time.Minute*1, time.Second*3)

	if err != nil {
		log.Fatal().Err(err).Msg("error connecting to dispatcher server")
	}
	return client
}
