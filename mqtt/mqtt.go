package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"geckoclient/climate_monitor/climate"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig holds the configuration for the MQTT client.
type MQTTConfig struct {
	BrokerURL     string
	ClientID      string
	Username      string
	Password      string
	TopicPrefix   string
	QoS           byte
	Retained      bool
	AutoReconnect bool
	MaxRetries    int
	RetryInterval time.Duration
}

// Publisher sends stored samples to <TopicPrefix>/sensors.
type Publisher struct {
	client mqtt.Client
	config MQTTConfig
	logger *slog.Logger
}

// NewPublisher connects to the broker, retrying up to MaxRetries times.
func NewPublisher(config MQTTConfig, logger *slog.Logger) (*Publisher, error) {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 2 * time.Second
	}

	opts := mqtt.NewClientOptions().AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetAutoReconnect(config.AutoReconnect)

	var err error
	for retries := 1; retries <= config.MaxRetries; retries++ {
		client := mqtt.NewClient(opts)
		token := client.Connect()
		if token.WaitTimeout(config.RetryInterval) && token.Error() == nil {
			logger.Info("connected to MQTT broker", "broker", config.BrokerURL)
			return &Publisher{client: client, config: config, logger: logger}, nil
		}
		err = token.Error()
		if err == nil {
			err = fmt.Errorf("connect timed out after %s", config.RetryInterval)
		}
		logger.Warn("failed to connect to MQTT broker",
			"attempt", retries, "max_retries", config.MaxRetries, "error", err)
		if retries < config.MaxRetries {
			time.Sleep(config.RetryInterval)
		}
	}
	return nil, fmt.Errorf("failed to connect to MQTT broker after %d retries: %w", config.MaxRetries, err)
}

type samplePayload struct {
	DeviceID    string    `json:"device_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
}

func encodeSample(deviceID string, s climate.Sample) ([]byte, error) {
	return json.Marshal(samplePayload{
		DeviceID:    deviceID,
		Timestamp:   s.Timestamp,
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
	})
}

func (p *Publisher) SensorsTopic() string {
	return p.config.TopicPrefix + "/sensors"
}

// PublishSample publishes without waiting for the broker acknowledgement.
func (p *Publisher) PublishSample(deviceID string, s climate.Sample) error {
	payload, err := encodeSample(deviceID, s)
	if err != nil {
		return fmt.Errorf("marshaling sample: %w", err)
	}
	return p.Publish(p.SensorsTopic(), payload)
}

// Publish publishes a message to a specific MQTT topic.
func (p *Publisher) Publish(topic string, payload []byte) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected, cannot publish to %s", topic)
	}
	token := p.client.Publish(topic, p.config.QoS, p.config.Retained, payload)
	go func() { // Non-blocking wait for publish to complete
		if token.Wait() && token.Error() != nil {
			p.logger.Error("error publishing", "topic", topic, "error", token.Error())
		}
	}()
	p.logger.Debug("published", "topic", topic, "payload", string(payload))
	return nil
}

// Close disconnects the MQTT client.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.logger.Info("disconnecting from MQTT broker")
		p.client.Disconnect(250) // Wait up to 250 milliseconds for inflight messages to be delivered
	}
}
