package bootstrap

import (
	"strings"

	appconfig "github.com/wolfman30/dialogflow-bridge/internal/config"
	"github.com/wolfman30/dialogflow-bridge/internal/media"
	"github.com/wolfman30/dialogflow-bridge/pkg/logging"
)

// BuildImageSource serves images from the local directory first and the S3
// bucket second when one is configured.
func BuildImageSource(cfg *appconfig.Config, s3Client media.S3API, logger *logging.Logger) media.Source {
	if logger == nil {
		logger = logging.Default()
	}
	local := media.NewLocalSource(cfg.StaticDir)
	if strings.TrimSpace(cfg.StaticS3Bucket) == "" || s3Client == nil {
		logger.Info("serving images from local directory", "dir", cfg.StaticDir)
		return local
	}
	logger.Info("serving images from local directory and s3",
		"dir", cfg.StaticDir,
		"bucket", cfg.StaticS3Bucket,
		"prefix", cfg.StaticS3Prefix,
	)
	return media.Chain{local, media.NewS3Source(s3Client, cfg.StaticS3Bucket, cfg.StaticS3Prefix)}
}
