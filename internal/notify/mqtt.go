// server/internal/notify/mqtt.go
// Package notify publishes routed captures to an MQTT broker.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"spotmytrash-api-server/config"
	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/routing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Client is the part of the paho client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// CaptureEvent is the message published for every persisted capture.
type CaptureEvent struct {
	Path       routing.Path       `json:"path"`
	Locator    string             `json:"locator"`
	PhotoID    string             `json:"photoId,omitempty"`
	PhotoURL   string             `json:"photoUrl,omitempty"`
	GPS        *models.GeoReading `json:"gps"`
	Device     string             `json:"device"`
	UserID     string             `json:"userId,omitempty"`
	CapturedAt time.Time          `json:"capturedAt"`
}

// Publisher sends CaptureEvents to "<topic>/captures". It is a routing observer;
// a failed publish is logged and never fails the capture.
type Publisher struct {
	client Client
	topic  string
}

func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic + "/captures"}
}

// Dial connects to the broker from cfg.
func Dial(cfg config.MQTTConfig) (*Publisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "spotmytrash-" + uuid.NewString()[:8]
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		zap.L().Warn("notify: mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, eris.Errorf("notify: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, eris.Wrapf(err, "notify: connect to %s", cfg.Broker)
	}
	zap.L().Info("notify: connected to mqtt broker", zap.String("broker", cfg.Broker))
	return NewPublisher(client, cfg.Topic), nil
}

func (p *Publisher) Topic() string { return p.topic }

func (p *Publisher) Publish(ev CaptureEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "notify: encode event")
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return eris.Errorf("notify: publish to %s timed out", p.topic)
	}
	return eris.Wrap(token.Error(), "notify: publish")
}

func (p *Publisher) Routed(_ context.Context, rec models.CaptureRecord, res routing.Result) {
	ev := CaptureEvent{
		Path:       res.Path,
		Locator:    res.Locator,
		PhotoID:    res.PhotoID,
		PhotoURL:   res.PhotoURL,
		GPS:        rec.GPS,
		Device:     rec.Device,
		UserID:     rec.UserID,
		CapturedAt: rec.CapturedAt,
	}
	if err := p.Publish(ev); err != nil {
		zap.L().Warn("notify: capture event not published", zap.Error(err))
	}
}

// Failed captures are not published.
func (p *Publisher) Failed(context.Context, models.CaptureRecord, routing.Path, error) {}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
