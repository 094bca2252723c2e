// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client      *redis.Client
	maxLen      int64
	usageStream Stream
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64, usageStream string) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	stream := Stream(usageStream)
	if stream == "" {
		stream = StreamUsageEvents
	}
	return &Producer{
		client:      client,
		maxLen:      maxLen,
		usageStream: stream,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// UsageEventMessage 用量分析事件
type UsageEventMessage struct {
	EventID   string `json:"event_id"`
	UserID    string `json:"user_id"`
	Route     string `json:"route"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
	CostMilli int64  `json:"cost_milli"`
	RequestID string `json:"request_id,omitempty"`
}

// PublishUsageEvent 发布用量分析事件，尽力而为
func (p *Producer) PublishUsageEvent(ctx context.Context, event *UsageEventMessage) (string, error) {
	msg, err := NewMessage(event.EventID, "usage_event", event.UserID, event)
	if err != nil {
		return "", err
	}
	if event.RequestID != "" {
		msg.SetMetadata("request_id", event.RequestID)
	}
	return p.Publish(ctx, p.usageStream, msg)
}
