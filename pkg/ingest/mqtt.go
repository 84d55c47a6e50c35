package ingest

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chargemon/chargemon/pkg/types"
)

const streamBuffer = 64

// MQTTSource subscribes to the rig's charger and temperature topics and
// feeds the decoded samples into bounded channels. When a channel is
// full the sample is dropped with a warning; ingestion must never block
// on a slow consumer (at-least-once delivery is assumed upstream).
type MQTTSource struct {
	client      paho.Client
	charger     chan types.ChargerSample
	temperature chan types.TemperatureSample
}

var _ Source = (*MQTTSource)(nil)

// NewMQTTSource connects to the broker and subscribes to both topics.
func NewMQTTSource(broker, chargerTopic, temperatureTopic string) (*MQTTSource, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("chargemon").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, pkgerrors.New("broker connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, pkgerrors.Wrap(err, "connect to broker")
	}

	s := &MQTTSource{
		client:      client,
		charger:     make(chan types.ChargerSample, streamBuffer),
		temperature: make(chan types.TemperatureSample, streamBuffer),
	}

	if err := s.subscribe(chargerTopic, func(_ paho.Client, msg paho.Message) {
		sample := ParseChargerSample(msg.Payload(), time.Now())
		select {
		case s.charger <- sample:
		default:
			logrus.Warn("charger stream full, dropping sample")
		}
	}); err != nil {
		client.Disconnect(250)
		return nil, err
	}

	if err := s.subscribe(temperatureTopic, func(_ paho.Client, msg paho.Message) {
		sample := ParseTemperatureSample(msg.Payload(), time.Now())
		select {
		case s.temperature <- sample:
		default:
			logrus.Warn("temperature stream full, dropping sample")
		}
	}); err != nil {
		client.Disconnect(250)
		return nil, err
	}

	logrus.Infof("subscribed to %s and %s on %s", chargerTopic, temperatureTopic, broker)
	return s, nil
}

func (s *MQTTSource) subscribe(topic string, handler paho.MessageHandler) error {
	token := s.client.Subscribe(topic, 0, handler)
	if !token.WaitTimeout(10 * time.Second) {
		return pkgerrors.Errorf("subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return pkgerrors.Wrapf(err, "subscribe to %s", topic)
	}
	return nil
}

func (s *MQTTSource) Charger() <-chan types.ChargerSample { return s.charger }

func (s *MQTTSource) Temperature() <-chan types.TemperatureSample { return s.temperature }

func (s *MQTTSource) Close() error {
	s.client.Disconnect(1000)
	close(s.charger)
	close(s.temperature)
	return nil
}
