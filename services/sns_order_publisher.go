package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MaximeEsteves/backend-lesmidena/models"
)

// SNSPublisher is satisfied by pkg/aws.SNSClient.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn string, message []byte, eventType string) error
}

type SNSOrderPublisher struct {
	sns      SNSPublisher
	topicArn string
}

func NewSNSOrderPublisher(sns SNSPublisher, topicArn string) *SNSOrderPublisher {
	return &SNSOrderPublisher{sns: sns, topicArn: topicArn}
}

func (p *SNSOrderPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return p.sns.Publish(ctx, p.topicArn, body, event.Type)
}
