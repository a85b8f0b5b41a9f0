// Package messagebus publishes generated alerts to the back-office queue so
// the fleet-management application can raise maintenance tickets. Publishing
// is strictly best-effort; the ingestion path never depends on it.
package messagebus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/Project-Caravana/telemetry-service/config"
)

// Client defines the interface for message bus operations
type Client interface {
	PublishMessage(ctx context.Context, message interface{}, queueName string) error
	Close(ctx context.Context) error
}

// AzureServiceBusClient implements Client using Azure Service Bus
type AzureServiceBusClient struct {
	client *azservicebus.Client
}

// NewClient creates a new message bus client. When no connection string is
// configured, publishing becomes a no-op so local development does not need
// a Service Bus namespace.
func NewClient(cfg *config.ServiceBusConfig) (Client, error) {
	if cfg.ConnectionString == "" {
		return &noopClient{}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service bus client: %w", err)
	}

	return &AzureServiceBusClient{client: client}, nil
}

// PublishMessage publishes a message to a queue
func (c *AzureServiceBusClient) PublishMessage(ctx context.Context, message interface{}, queueName string) error {
	sender, err := c.client.NewSender(queueName, nil)
	if err != nil {
		return fmt.Errorf("failed to create sender for queue %s: %w", queueName, err)
	}
	defer sender.Close(ctx)

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	sbMessage := &azservicebus.Message{
		Body: messageBytes,
	}

	if err := sender.SendMessage(ctx, sbMessage, nil); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// Close closes the client
func (c *AzureServiceBusClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// noopClient drops every message
type noopClient struct{}

func (n *noopClient) PublishMessage(ctx context.Context, message interface{}, queueName string) error {
	return nil
}

func (n *noopClient) Close(ctx context.Context) error {
	return nil
}
