package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"blitzwatch/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	DataPath         string
	ModelPath        string
	RegistryPath     string
	Seasons          []int
	SourceURL        string
	RESTTimeout      time.Duration
	ServerPort       int
	LogLevel         string
	ProbThreshold    float64
	EvalThreshold    float64
	TestSize         float64
	Seed             int64
	NEstimators      int
	LearningRate     float64
	MaxDepth         int
	MinChildSamples  int
	InsightsCacheTTL time.Duration
	SHAPSampleSize   int
	CORSOrigins      []string
}

type ConfigFile struct {
	Data struct {
		Path      string `yaml:"path"`
		Seasons   []int  `yaml:"seasons"`
		SourceURL string `yaml:"sourceURL"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"data"`

	Model struct {
		Path         string `yaml:"path"`
		RegistryPath string `yaml:"registryPath"`
	} `yaml:"model"`

	Training struct {
		TestSize        float64 `yaml:"testSize"`
		Seed            int64   `yaml:"seed"`
		NEstimators     int     `yaml:"nEstimators"`
		LearningRate    float64 `yaml:"learningRate"`
		MaxDepth        int     `yaml:"maxDepth"`
		MinChildSamples int     `yaml:"minChildSamples"`
		EvalThreshold   float64 `yaml:"evalThreshold"`
	} `yaml:"training"`

	Serving struct {
		Port             int      `yaml:"port"`
		ProbThreshold    float64  `yaml:"probThreshold"`
		InsightsCacheTTL string   `yaml:"insightsCacheTTL"`
		SHAPSampleSize   int      `yaml:"shapSampleSize"`
		CORSOrigins      []string `yaml:"corsOrigins"`
	} `yaml:"serving"`

	System struct {
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load reads settings from the YAML file named by CONFIG_FILE when set, and
// from the environment otherwise. A .env file in the working directory is
// loaded first; variables already present in the environment win.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	restTimeout, err := time.ParseDuration(config.Data.Timeout)
	if err != nil {
		restTimeout = common.DefaultRESTTimeout
	}

	cacheTTL, err := time.ParseDuration(config.Serving.InsightsCacheTTL)
	if err != nil {
		cacheTTL = common.DefaultInsightsCacheTTL
	}

	seasons := config.Data.Seasons
	if env := os.Getenv(common.EnvSeasons); env != "" {
		if seasons, err = parseSeasons(env); err != nil {
			return Settings{}, err
		}
	}
	if len(seasons) == 0 {
		seasons = defaultSeasons()
	}

	corsOrigins := config.Serving.CORSOrigins
	if env := os.Getenv(common.EnvCORSOrigins); env != "" {
		corsOrigins = strings.Split(env, ",")
	}
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	settings := Settings{
		DataPath:         getEnvOrDefault(common.EnvDataPath, orString(config.Data.Path, common.DefaultDataPath)),
		ModelPath:        getEnvOrDefault(common.EnvModelPath, orString(config.Model.Path, common.DefaultModelPath)),
		RegistryPath:     getEnvOrDefault(common.EnvRegistryPath, orString(config.Model.RegistryPath, common.DefaultRegistryPath)),
		Seasons:          seasons,
		SourceURL:        getEnvOrDefault(common.EnvSourceURL, orString(config.Data.SourceURL, common.DefaultSourceURL)),
		RESTTimeout:      getDurationOrDefault(common.EnvRESTTimeout, restTimeout),
		ServerPort:       getIntFromEnvOrConfig(common.EnvServerPort, config.Serving.Port, common.DefaultServerPort),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, orString(config.System.LogLevel, common.DefaultLogLevel)),
		ProbThreshold:    getFloatFromEnvOrConfig(common.EnvProbThreshold, config.Serving.ProbThreshold, common.DefaultProbThreshold),
		EvalThreshold:    getFloatFromEnvOrConfig(common.EnvEvalThreshold, config.Training.EvalThreshold, common.DefaultEvalThreshold),
		TestSize:         getFloatFromEnvOrConfig(common.EnvTestSize, config.Training.TestSize, common.DefaultTestSize),
		Seed:             int64(getIntFromEnvOrConfig(common.EnvSeed, int(config.Training.Seed), common.DefaultSeed)),
		NEstimators:      getIntFromEnvOrConfig(common.EnvNEstimators, config.Training.NEstimators, common.DefaultNEstimators),
		LearningRate:     getFloatFromEnvOrConfig(common.EnvLearningRate, config.Training.LearningRate, common.DefaultLearningRate),
		MaxDepth:         getIntFromEnvOrConfig(common.EnvMaxDepth, config.Training.MaxDepth, common.DefaultMaxDepth),
		MinChildSamples:  getIntFromEnvOrConfig(common.EnvMinChildSamples, config.Training.MinChildSamples, common.DefaultMinChildSamples),
		InsightsCacheTTL: getDurationOrDefault(common.EnvInsightsCacheTTL, cacheTTL),
		SHAPSampleSize:   getIntFromEnvOrConfig(common.EnvSHAPSampleSize, config.Serving.SHAPSampleSize, common.DefaultSHAPSampleSize),
		CORSOrigins:      corsOrigins,
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	seasons := defaultSeasons()
	if env := os.Getenv(common.EnvSeasons); env != "" {
		var err error
		if seasons, err = parseSeasons(env); err != nil {
			return Settings{}, err
		}
	}

	settings := Settings{
		DataPath:         getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		ModelPath:        getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		RegistryPath:     getEnvOrDefault(common.EnvRegistryPath, common.DefaultRegistryPath),
		Seasons:          seasons,
		SourceURL:        getEnvOrDefault(common.EnvSourceURL, common.DefaultSourceURL),
		RESTTimeout:      getDurationOrDefault(common.EnvRESTTimeout, common.DefaultRESTTimeout),
		ServerPort:       getIntOrDefault(common.EnvServerPort, common.DefaultServerPort),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		ProbThreshold:    getFloatOrDefault(common.EnvProbThreshold, common.DefaultProbThreshold),
		EvalThreshold:    getFloatOrDefault(common.EnvEvalThreshold, common.DefaultEvalThreshold),
		TestSize:         getFloatOrDefault(common.EnvTestSize, common.DefaultTestSize),
		Seed:             int64(getIntOrDefault(common.EnvSeed, common.DefaultSeed)),
		NEstimators:      getIntOrDefault(common.EnvNEstimators, common.DefaultNEstimators),
		LearningRate:     getFloatOrDefault(common.EnvLearningRate, common.DefaultLearningRate),
		MaxDepth:         getIntOrDefault(common.EnvMaxDepth, common.DefaultMaxDepth),
		MinChildSamples:  getIntOrDefault(common.EnvMinChildSamples, common.DefaultMinChildSamples),
		InsightsCacheTTL: getDurationOrDefault(common.EnvInsightsCacheTTL, common.DefaultInsightsCacheTTL),
		SHAPSampleSize:   getIntOrDefault(common.EnvSHAPSampleSize, common.DefaultSHAPSampleSize),
		CORSOrigins:      splitOrDefault(os.Getenv(common.EnvCORSOrigins), []string{"*"}),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// parseSeasons accepts either a comma separated list ("2019,2021") or an
// inclusive range ("2018-2023").
func parseSeasons(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	if from, to, ok := strings.Cut(v, "-"); ok {
		start, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("invalid season range %q: %w", v, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(to))
		if err != nil {
			return nil, fmt.Errorf("invalid season range %q: %w", v, err)
		}
		if end < start {
			return nil, fmt.Errorf("invalid season range %q: end before start", v)
		}
		seasons := make([]int, 0, end-start+1)
		for s := start; s <= end; s++ {
			seasons = append(seasons, s)
		}
		return seasons, nil
	}

	var seasons []int
	for _, part := range strings.Split(v, ",") {
		s, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid season %q: %w", part, err)
		}
		seasons = append(seasons, s)
	}
	return seasons, nil
}

func defaultSeasons() []int {
	seasons := make([]int, 0, common.DefaultLastSeason-common.DefaultFirstSeason+1)
	for s := common.DefaultFirstSeason; s <= common.DefaultLastSeason; s++ {
		seasons = append(seasons, s)
	}
	return seasons
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	return strings.Split(v, ",")
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs range validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.SourceURL == "" {
		return fmt.Errorf("source URL cannot be empty")
	}

	if len(settings.Seasons) == 0 {
		return fmt.Errorf("at least one season must be specified")
	}
	for _, s := range settings.Seasons {
		if s < common.MinSeason || s > time.Now().Year()+1 {
			return fmt.Errorf("season %d out of range (play-by-play data starts in %d)", s, common.MinSeason)
		}
	}

	if settings.RESTTimeout < common.MinRESTTimeout || settings.RESTTimeout > common.MaxRESTTimeout {
		return fmt.Errorf("REST timeout must be between %v and %v, got %v", common.MinRESTTimeout, common.MaxRESTTimeout, settings.RESTTimeout)
	}
	if settings.InsightsCacheTTL < common.MinInsightsCacheTTL {
		return fmt.Errorf("insights cache TTL must be at least %v, got %v", common.MinInsightsCacheTTL, settings.InsightsCacheTTL)
	}

	if settings.ServerPort < common.MinServerPort || settings.ServerPort > common.MaxServerPort {
		return fmt.Errorf("server port must be between %d and %d, got %d", common.MinServerPort, common.MaxServerPort, settings.ServerPort)
	}

	if settings.ProbThreshold < common.MinProbThreshold || settings.ProbThreshold > common.MaxProbThreshold {
		return fmt.Errorf("probability threshold must be between %.2f and %.2f, got %f", common.MinProbThreshold, common.MaxProbThreshold, settings.ProbThreshold)
	}
	if settings.EvalThreshold < common.MinProbThreshold || settings.EvalThreshold > common.MaxProbThreshold {
		return fmt.Errorf("evaluation threshold must be between %.2f and %.2f, got %f", common.MinProbThreshold, common.MaxProbThreshold, settings.EvalThreshold)
	}
	if settings.TestSize < common.MinTestSize || settings.TestSize > common.MaxTestSize {
		return fmt.Errorf("test size must be between %.2f and %.2f, got %f", common.MinTestSize, common.MaxTestSize, settings.TestSize)
	}

	if settings.NEstimators <= 0 || settings.NEstimators > common.MaxNEstimators {
		return fmt.Errorf("n_estimators must be between 1 and %d, got %d", common.MaxNEstimators, settings.NEstimators)
	}
	if settings.LearningRate < common.MinLearningRate || settings.LearningRate > common.MaxLearningRate {
		return fmt.Errorf("learning rate must be between %g and %g, got %f", common.MinLearningRate, common.MaxLearningRate, settings.LearningRate)
	}
	if settings.MaxDepth <= 0 || settings.MaxDepth > common.MaxTreeDepth {
		return fmt.Errorf("max depth must be between 1 and %d, got %d", common.MaxTreeDepth, settings.MaxDepth)
	}
	if settings.MinChildSamples <= 0 {
		return fmt.Errorf("min child samples must be positive, got %d", settings.MinChildSamples)
	}
	if settings.SHAPSampleSize <= 0 || settings.SHAPSampleSize > common.MaxSHAPSampleSize {
		return fmt.Errorf("SHAP sample size must be between 1 and %d, got %d", common.MaxSHAPSampleSize, settings.SHAPSampleSize)
	}

	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}

	return nil
}
