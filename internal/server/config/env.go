package config

import (
	"os"
	"strconv"
	"strings"
)

// parseEnv overlays Config fields from environment variables. Env wins over
// flags so containerized deployments can override baked-in arguments.
func parseEnv(config *Config) {
	setIf := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setIf(&config.EndpointAddrHTTP, "ADDRESS")
	setIf(&config.DatabaseDSN, "DATABASE_DSN")
	setIf(&config.SecretKey, "SECRET_KEY")
	setIf(&config.StorageProvider, "STORAGE_PROVIDER")
	setIf(&config.S3Region, "S3_REGION")
	setIf(&config.S3Bucket, "S3_BUCKET")
	setIf(&config.MinioEndpoint, "MINIO_ENDPOINT")
	setIf(&config.MinioRegion, "MINIO_REGION")
	setIf(&config.MinioAccessKey, "MINIO_ACCESS_KEY")
	setIf(&config.MinioSecretKey, "MINIO_SECRET_KEY")
	setIf(&config.MinioBucket, "MINIO_BUCKET")
	setIf(&config.RedisAddr, "REDIS_ADDR")

	if v, ok := os.LookupEnv("MAX_FILE_SIZE"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.MaxFileSize = n
		}
	}
	if v, ok := os.LookupEnv("MAX_UPDATE_DEPTH"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			config.MaxUpdateDepth = n
		}
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok && v != "" {
		config.KafkaBrokers = strings.Split(v, ",")
	}
}
