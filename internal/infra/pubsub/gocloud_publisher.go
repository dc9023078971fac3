package pubsub

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	cloudpubsub "gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub" // mem:// topics for development and tests

	"tenantauth/internal/domain/lifecycle"
	"tenantauth/internal/domain/service"
)

// goCloudPublisher sends reset events to any topic the Go CDK can open by URL.
type goCloudPublisher struct {
	topic  *cloudpubsub.Topic
	logger *slog.Logger
}

// NewGoCloudPublisher opens the topic at url, e.g. mem://password-reset.
func NewGoCloudPublisher(ctx context.Context, url string, logger *slog.Logger) (service.PasswordResetPublisher, error) {
	topic, err := cloudpubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open topic %s", url)
	}

	return &goCloudPublisher{topic: topic, logger: logger}, nil
}

func (p *goCloudPublisher) PublishPasswordReset(ctx context.Context, event *service.PasswordResetEvent) error {
	data, attributes, err := encodeResetEvent(event)
	if err != nil {
		return err
	}

	if err := p.topic.Send(ctx, &cloudpubsub.Message{Body: data, Metadata: attributes}); err != nil {
		return errors.Wrap(err, "failed to send password reset event")
	}

	p.logger.InfoContext(ctx, "[GoCloudPubSub] Password reset event published",
		slog.String("account_id", event.AccountID),
	)

	return nil
}

func (p *goCloudPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), lifecycle.DefaultTimeout)
	defer cancel()

	return errors.WithStack(p.topic.Shutdown(ctx))
}
