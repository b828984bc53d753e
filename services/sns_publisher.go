package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yashrajoria/stripe-payment-service/models"
	aws_pkg "github.com/yashrajoria/stripe-payment-service/pkg/aws"
)

// PaymentEventPublisher delivers payment events to downstream services.
// SNSEventPublisher and kafka.PaymentEventProducer implement it.
type PaymentEventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

type SNSEventPublisher struct {
	sns      aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(sns aws_pkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{sns: sns, topicArn: topicArn}
}

func (p *SNSEventPublisher) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	if p.sns == nil {
		return errors.New("sns publisher not configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	return p.sns.Publish(ctx, p.topicArn, payload, map[string]string{"event_type": event.Type})
}
