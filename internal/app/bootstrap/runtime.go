package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/formgate/leadcapture/internal/archive"
	appconfig "github.com/formgate/leadcapture/internal/config"
	"github.com/formgate/leadcapture/internal/leads"
	"github.com/formgate/leadcapture/internal/notify"
	"github.com/formgate/leadcapture/pkg/logging"
)

// BuildNotifier wires the optional new-lead email notifier. Returns nil when
// no recipient is configured or no provider is usable, so callers can hand
// the result straight to the submission service.
func BuildNotifier(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) leads.Notifier {
	if cfg == nil || cfg.NotifyEmailTo == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	sender := notify.NewEmailSender(cfg.EmailProvider, sesv2.NewFromConfig(awsCfg),
		notify.SESConfig{FromEmail: cfg.NotifyEmailFrom, FromName: cfg.NotifyFromName},
		notify.SendGridConfig{APIKey: cfg.SendGridAPIKey, FromEmail: cfg.NotifyEmailFrom, FromName: cfg.NotifyFromName},
		logger)
	if sender == nil {
		logger.Warn("lead notifications disabled: no usable email provider", "provider", cfg.EmailProvider)
		return nil
	}

	svc := notify.NewService(sender, cfg.NotifyEmailTo, logger)
	if svc == nil {
		return nil
	}
	logger.Info("lead notifications enabled", "to", cfg.NotifyEmailTo, "provider", cfg.EmailProvider)
	return svc
}

// BuildArchiver wires the optional S3 erasure archiver. Returns nil when no
// bucket is configured.
func BuildArchiver(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) leads.EraseArchiver {
	if cfg == nil || cfg.ArchiveBucket == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("erasure archive enabled", "bucket", cfg.ArchiveBucket)
	return archive.NewStore(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger.Logger)
}
