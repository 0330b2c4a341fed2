package common

import "time"

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvDataPath         = "DATA_PATH"
	EnvModelPath        = "MODEL_PATH"
	EnvRegistryPath     = "REGISTRY_PATH"
	EnvSeasons          = "SEASONS"
	EnvSourceURL        = "PBP_SOURCE_URL"
	EnvRESTTimeout      = "REST_TIMEOUT"
	EnvServerPort       = "SERVER_PORT"
	EnvLogLevel         = "LOG_LEVEL"
	EnvProbThreshold    = "PROB_THRESHOLD"
	EnvEvalThreshold    = "EVAL_THRESHOLD"
	EnvTestSize         = "TEST_SIZE"
	EnvSeed             = "SEED"
	EnvNEstimators      = "N_ESTIMATORS"
	EnvLearningRate     = "LEARNING_RATE"
	EnvMaxDepth         = "MAX_DEPTH"
	EnvMinChildSamples  = "MIN_CHILD_SAMPLES"
	EnvInsightsCacheTTL = "INSIGHTS_CACHE_TTL"
	EnvSHAPSampleSize   = "SHAP_SAMPLE_SIZE"
	EnvCORSOrigins      = "CORS_ORIGINS"
)

// Configuration defaults
const (
	DefaultDataPath         = "data/raw_pass_plays.csv"
	DefaultModelPath        = "models/gbdt_blitz.json"
	DefaultRegistryPath     = "models/registry.db"
	DefaultSourceURL        = "https://github.com/nflverse/nflverse-data/releases/download/pbp"
	DefaultRESTTimeout      = 2 * time.Minute
	DefaultServerPort       = 5000
	DefaultLogLevel         = "info"
	DefaultProbThreshold    = 0.50
	DefaultEvalThreshold    = 0.50
	HighPrecisionThreshold  = 0.70
	DefaultTestSize         = 0.2
	DefaultSeed             = 42
	DefaultNEstimators      = 100
	DefaultLearningRate     = 0.1
	DefaultMaxDepth         = 6
	DefaultMinChildSamples  = 20
	DefaultInsightsCacheTTL = 10 * time.Minute
	DefaultSHAPSampleSize   = 2000
	DefaultFirstSeason      = 2018
	DefaultLastSeason       = 2023
)

// Validation constants
const (
	MinServerPort       = 1024
	MaxServerPort       = 65535
	MinProbThreshold    = 0.01
	MaxProbThreshold    = 0.99
	MinSeason           = 1999
	MaxNEstimators      = 5000
	MaxTreeDepth        = 16
	MaxSHAPSampleSize   = 100000
	MinTestSize         = 0.05
	MaxTestSize         = 0.5
	MinLearningRate     = 0.0001
	MaxLearningRate     = 1.0
	MinRESTTimeout      = time.Second
	MaxRESTTimeout      = 30 * time.Minute
	MinInsightsCacheTTL = time.Second
)

// Recommendation labels printed by the CLI and returned by the API.
const (
	RecommendBlitz   = "BLITZ"
	RecommendNoBlitz = "NO BLITZ"
)
