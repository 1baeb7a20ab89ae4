package gateway

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/plustik/kutsche/internal/dest"
	"github.com/plustik/kutsche/internal/smtp"
)

// Dispatch routes a received mail to each of its recipients' destinations,
// in list order, and keeps going past a failed recipient instead of
// aborting the whole delivery.
func Dispatch(ctx context.Context, result smtp.Result, destMap map[string]dest.Destination, log *logrus.Entry) {
	for _, rcpt := range result.Email.To {
		d, ok := destMap[rcpt]
		if !ok {
			log.WithField("recipient", rcpt).Warn("received an email without a destination mapping")
			continue
		}
		if err := d.WriteEmail(ctx, &result.Email.Content); err != nil {
			log.WithError(err).WithField("recipient", rcpt).Error("could not forward email to destination")
		}
	}
}
