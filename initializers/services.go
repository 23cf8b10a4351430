package initializers

import (
	"context"

	"github.com/Kariqs/amexan-marketplace/realtime"
	"github.com/Kariqs/amexan-marketplace/utils"
)

var (
	Hub      *realtime.Hub
	Mailer   utils.Mailer
	Storage  utils.ObjectStorage
	Payments utils.PaymentGateway
)

// InitServices builds the outbound integrations from Config.
func InitServices(ctx context.Context) error {
	Hub = realtime.NewHub(
		realtime.WithAllowedOrigins(Config.AllowedOrigins),
		realtime.WithLogger(Log),
	)

	Mailer = &utils.SMTPMailer{
		From:     Config.FromEmail,
		Password: Config.FromEmailPassword,
		Host:     Config.FromEmailSMTP,
		Addr:     Config.SMTPAddress,
	}

	Payments = utils.NewPesapalClient(utils.PesapalConfig{
		BaseURL:        Config.PesapalBaseURL,
		ConsumerKey:    Config.PesapalConsumerKey,
		ConsumerSecret: Config.PesapalConsumerSecret,
		NotificationID: Config.PesapalNotificationID,
		CallbackURL:    Config.PesapalCallbackURL,
	})

	storage, err := utils.NewS3Storage(ctx, Config.S3Bucket)
	if err != nil {
		return err
	}
	Storage = storage
	return nil
}
