package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"tileingest"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"TILE_INGEST_ADDRESS" default:":3443"`
	MetricsAddress  string `envconfig:"TILE_INGEST_METRICS_ADDRESS" default:":8080"`
	BaseUrl         string `envconfig:"TILE_INGEST_BASE_URL" default:"https://localhost:3443"`
	BackendUrl      string `envconfig:"BACKEND_URL" default:""`
	LogLevel        string `envconfig:"TILE_INGEST_LOG_LEVEL" default:"info"`
	MigrationFolder string `envconfig:"TILE_INGEST_MIGRATIONS_FOLDER" default:""`

	// Tiling limits. An image failing either limit is rejected before any
	// tile is produced.
	TileSize        int   `envconfig:"IMAGE_SIZE" default:"256"`
	ImagePixelLimit int64 `envconfig:"IMAGE_DIMENSIONS_LIMIT" default:"25000000"`
	ImageByteLimit  int64 `envconfig:"IMAGE_MEMORY_SIZE_LIMIT" default:"20000000"`
	UploadBatchSize int   `envconfig:"UPLOAD_BATCH_SIZE" default:"30"`

	PodReadinessRetries  int           `envconfig:"POD_READINESS_RETRIES" default:"15"`
	PodReadinessInterval time.Duration `envconfig:"POD_READINESS_INTERVAL" default:"1s"`

	S3     s3Config
	Kube   kubeConfig
	Queue  queueConfig
	PubSub pubSubConfig
}

type s3Config struct {
	Endpoint          string `envconfig:"TILE_INGEST_S3_ENDPOINT" default:"localhost:9000"`
	AccessKey         string `envconfig:"TILE_INGEST_S3_ACCESS_KEY" default:""`
	SecretKey         string `envconfig:"TILE_INGEST_S3_SECRET_KEY" default:""`
	UseSSL            bool   `envconfig:"TILE_INGEST_S3_USE_SSL" default:"false"`
	OriginalBucket    string `envconfig:"ORIGINAL_CONTAINER_NAME" default:"originals"`
	PublicBucket      string `envconfig:"PUBLIC_CONTAINER_NAME" default:"public"`
	DatasetBucket     string `envconfig:"DATASET_CONTAINER_NAME" default:"datasets"`
	ImportModelBucket string `envconfig:"IMPORT_MODEL_CONTAINER_NAME" default:"import-models"`
	ExportModelBucket string `envconfig:"EXPORT_MODEL_CONTAINER_NAME" default:"export-models"`
}

type kubeConfig struct {
	Server              string `envconfig:"CLUSTER_SERVER" default:""`
	Token               string `envconfig:"CLUSTER_TOKEN" default:""`
	CAData              string `envconfig:"CLUSTER_CA_DATA" default:""`
	Namespace           string `envconfig:"CLUSTER_NAMESPACE" default:"default"`
	TrainingImage       string `envconfig:"TRAINING_IMAGE" default:""`
	TrainingImageSecret string `envconfig:"TRAINING_IMAGE_SECRET" default:""`
}

type queueConfig struct {
	ConnectionString string `envconfig:"QUEUE_CONNECTION_STRING" default:""`
}

type pubSubConfig struct {
	ConnectionString string `envconfig:"PUB_SUB_CONNECTION_STRING" default:""`
	HubName          string `envconfig:"PUB_SUB_HUB_NAME" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config suitable for tests: an in-memory sqlite
// database and default tiling limits. It never reads the environment.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{Type: "sqlite", Name: "file::memory:?cache=shared"},
		Service: &svcConfig{
			LogLevel:             "info",
			TileSize:             256,
			ImagePixelLimit:      25_000_000,
			ImageByteLimit:       20_000_000,
			UploadBatchSize:      30,
			PodReadinessRetries:  15,
			PodReadinessInterval: time.Second,
			S3: s3Config{
				OriginalBucket:    "originals",
				PublicBucket:      "public",
				DatasetBucket:     "datasets",
				ImportModelBucket: "import-models",
				ExportModelBucket: "export-models",
			},
		},
	}
}
