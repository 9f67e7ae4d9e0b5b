package config

import (
	"flag"
	"os"
	"strings"

	"github.com/avolkov/filevault/internal/flagx"
)

// parseFlags overlays selected Config fields from command-line flags.
// os.Args is filtered to only the flags owned here, so parsing never
// collides with flags defined by other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-provider",
		"-s3-region", "-s3-bucket",
		"-minio-endpoint", "-minio-access-key", "-minio-secret-key", "-minio-bucket",
		"-max-file-size", "-max-update-depth",
		"-redis-addr", "-kafka-brokers",
	})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.StorageProvider, "provider", config.StorageProvider, "storage provider (s3|minio)")

	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3Bucket, "s3-bucket", config.S3Bucket, "S3 bucket")

	fs.StringVar(&config.MinioEndpoint, "minio-endpoint", config.MinioEndpoint, "S3-compatible base endpoint")
	fs.StringVar(&config.MinioAccessKey, "minio-access-key", config.MinioAccessKey, "S3-compatible access key")
	fs.StringVar(&config.MinioSecretKey, "minio-secret-key", config.MinioSecretKey, "S3-compatible secret key")
	fs.StringVar(&config.MinioBucket, "minio-bucket", config.MinioBucket, "S3-compatible bucket")

	fs.Int64Var(&config.MaxFileSize, "max-file-size", config.MaxFileSize, "maximum upload size, bytes")
	fs.IntVar(&config.MaxUpdateDepth, "max-update-depth", config.MaxUpdateDepth, "descendant update ceiling")

	fs.StringVar(&config.RedisAddr, "redis-addr", config.RedisAddr, "redis address (empty disables cache)")

	kafkaBrokers := fs.String("kafka-brokers", strings.Join(config.KafkaBrokers, ","), "comma-separated kafka brokers (empty disables events)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *kafkaBrokers != "" {
		config.KafkaBrokers = strings.Split(*kafkaBrokers, ",")
	}
}
