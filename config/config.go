// server/config/config.go
package config

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// --- Sub-structs mirroring the YAML layout ---

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"corsOrigins"`
	MaxUploadMB int64    `mapstructure:"maxUploadMB"`
}

type StoreConfig struct {
	// Driver is "mongo" or "memory".
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI         string        `mapstructure:"uri"`
	DBName      string        `mapstructure:"dbName"`
	PingTimeout time.Duration `mapstructure:"pingTimeout"`
	// RequeryRate paces subscription re-queries, per second.
	RequeryRate  float64 `mapstructure:"requeryRate"`
	RequeryBurst int     `mapstructure:"requeryBurst"`
}

type BlobConfig struct {
	// Driver is "s3", "minio" or "memory".
	Driver string `mapstructure:"driver"`
	// BaseURL is only used by the memory driver.
	BaseURL string `mapstructure:"baseURL"`
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
}

type MinioConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"accessKeyID"`
	SecretAccessKey string        `mapstructure:"secretAccessKey"`
	UseSSL          bool          `mapstructure:"useSSL"`
	Bucket          string        `mapstructure:"bucket"`
	URLExpiry       time.Duration `mapstructure:"urlExpiry"`
}

type CaptureConfig struct {
	Device     string        `mapstructure:"device"`
	FixTimeout time.Duration `mapstructure:"fixTimeout"`
	OfflineDir string        `mapstructure:"offlineDir"`
}

type RepositoryConfig struct {
	OrderBy          string        `mapstructure:"orderBy"`
	Limit            int64         `mapstructure:"limit"`
	PhotoURLCacheTTL time.Duration `mapstructure:"photoURLCacheTTL"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"clientID"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// --- Main Config struct ---

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Blob       BlobConfig       `mapstructure:"blob"`
	S3         S3Config         `mapstructure:"s3"`
	Minio      MinioConfig      `mapstructure:"minio"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Repository RepositoryConfig `mapstructure:"repository"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Log        LogConfig        `mapstructure:"log"`
}

// LoadConfig reads config.yaml from path and overrides it with environment variables.
// A missing file is not an error: environment and defaults are enough.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.corsOrigins", []string{"*"})
	v.SetDefault("server.maxUploadMB", 20)
	v.SetDefault("store.driver", "mongo")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.dbName", "spotmytrash")
	v.SetDefault("mongo.pingTimeout", 2*time.Second)
	v.SetDefault("mongo.requeryRate", 5.0)
	v.SetDefault("mongo.requeryBurst", 1)
	v.SetDefault("blob.driver", "s3")
	v.SetDefault("blob.baseURL", "http://localhost:8080/blobs")
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.bucket", "photos")
	v.SetDefault("minio.urlExpiry", 7*24*time.Hour)
	v.SetDefault("capture.device", "android")
	v.SetDefault("capture.fixTimeout", 10*time.Second)
	v.SetDefault("capture.offlineDir", "data/photos")
	v.SetDefault("repository.orderBy", "createdAt")
	v.SetDefault("repository.photoURLCacheTTL", 10*time.Minute)
	v.SetDefault("mqtt.topic", "spotmytrash")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Every key can be overridden from the environment, e.g. "mongo.uri" by MONGO_URI.
	bindings := map[string]string{
		"server.port":                 "SERVER_PORT",
		"store.driver":                "STORE_DRIVER",
		"mongo.uri":                   "MONGO_URI",
		"mongo.dbName":                "MONGO_DBNAME",
		"mongo.pingTimeout":           "MONGO_PING_TIMEOUT",
		"blob.driver":                 "BLOB_DRIVER",
		"blob.baseURL":                "BLOB_BASE_URL",
		"s3.bucket":                   "S3_BUCKET",
		"s3.region":                   "S3_REGION",
		"s3.accessKeyID":              "S3_ACCESS_KEY_ID",
		"s3.secretAccessKey":          "S3_SECRET_ACCESS_KEY",
		"s3.cloudFrontDomain":         "S3_CLOUDFRONT_DOMAIN",
		"minio.endpoint":              "MINIO_ENDPOINT",
		"minio.accessKeyID":           "MINIO_ACCESS_KEY_ID",
		"minio.secretAccessKey":       "MINIO_SECRET_ACCESS_KEY",
		"minio.bucket":                "MINIO_BUCKET",
		"capture.device":              "CAPTURE_DEVICE",
		"capture.offlineDir":          "CAPTURE_OFFLINE_DIR",
		"repository.orderBy":          "REPOSITORY_ORDER_BY",
		"repository.photoURLCacheTTL": "REPOSITORY_PHOTO_URL_CACHE_TTL",
		"mqtt.broker":                 "MQTT_BROKER",
		"mqtt.username":               "MQTT_USERNAME",
		"mqtt.password":               "MQTT_PASSWORD",
		"mqtt.topic":                  "MQTT_TOPIC",
		"log.level":                   "LOG_LEVEL",
		"log.format":                  "LOG_FORMAT",
	}
	for key, env := range bindings {
		if err = v.BindEnv(key, env); err != nil {
			err = eris.Wrapf(err, "config: bind %s", key)
			return
		}
	}

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			err = eris.Wrap(err, "config: read file")
			return
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		err = eris.Wrap(err, "config: unmarshal")
		return
	}

	return config, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
