package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/avolkov/filevault/internal/flagx"
	"github.com/avolkov/filevault/internal/timex"
)

// jsonConfig is the JSON-file DTO. Duration fields use timex.Duration so
// both "15m" strings and integer nanoseconds parse. Pointer fields
// distinguish "absent" from "zero": only present fields overlay the config.
type jsonConfig struct {
	EndpointAddrHTTP *string `json:"endpoint_addr_http"`
	DatabaseDSN      *string `json:"database_dsn"`
	SecretKey        *string `json:"secret_key"`

	StorageProvider *string `json:"storage_provider"`

	S3Region *string `json:"s3_region"`
	S3Bucket *string `json:"s3_bucket"`

	MinioEndpoint  *string `json:"minio_endpoint"`
	MinioRegion    *string `json:"minio_region"`
	MinioAccessKey *string `json:"minio_access_key"`
	MinioSecretKey *string `json:"minio_secret_key"`
	MinioBucket    *string `json:"minio_bucket"`

	UploadURLTTL   *timex.Duration `json:"upload_url_ttl"`
	DownloadURLTTL *timex.Duration `json:"download_url_ttl"`

	MaxFileSize         *int64    `json:"max_file_size"`
	AllowedMimePrefixes *[]string `json:"allowed_mime_prefixes"`
	MaxUpdateDepth      *int      `json:"max_update_depth"`

	RedisAddr    *string   `json:"redis_addr"`
	KafkaBrokers *[]string `json:"kafka_brokers"`
}

// parseJSON overlays configuration from the JSON file named by -c/-config.
// No file flag means nothing to load.
func parseJSON(config *Config) error {
	path := flagx.ConfigFilePath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file read error: %w", err)
	}

	c := &jsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config file parse error: %w", err)
	}

	setIf := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	setIf(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SecretKey, c.SecretKey)
	setIf(&config.StorageProvider, c.StorageProvider)
	setIf(&config.S3Region, c.S3Region)
	setIf(&config.S3Bucket, c.S3Bucket)
	setIf(&config.MinioEndpoint, c.MinioEndpoint)
	setIf(&config.MinioRegion, c.MinioRegion)
	setIf(&config.MinioAccessKey, c.MinioAccessKey)
	setIf(&config.MinioSecretKey, c.MinioSecretKey)
	setIf(&config.MinioBucket, c.MinioBucket)

	if c.UploadURLTTL != nil {
		config.UploadURLTTL = c.UploadURLTTL.Duration
	}
	if c.DownloadURLTTL != nil {
		config.DownloadURLTTL = c.DownloadURLTTL.Duration
	}
	if c.MaxFileSize != nil {
		config.MaxFileSize = *c.MaxFileSize
	}
	if c.AllowedMimePrefixes != nil {
		config.AllowedMimePrefixes = *c.AllowedMimePrefixes
	}
	if c.MaxUpdateDepth != nil {
		config.MaxUpdateDepth = *c.MaxUpdateDepth
	}
	setIf(&config.RedisAddr, c.RedisAddr)
	if c.KafkaBrokers != nil {
		config.KafkaBrokers = *c.KafkaBrokers
	}

	return nil
}
