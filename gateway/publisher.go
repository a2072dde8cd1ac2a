package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mrpasztoradam/goadsym"
)

// Publisher polls the configured tags and publishes their values to an MQTT
// broker. Handles are acquired at start and released at stop; values are
// published only when they change.
type Publisher struct {
	config  *MQTTConfig
	symbols *goadsym.SymbolAccess
	logger  *slog.Logger

	mu      sync.Mutex
	client  pahomqtt.Client
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	handles    map[string]goadsym.Handle
	lastValues map[string][]byte
}

// NewPublisher creates an MQTT publisher for the configured tags.
func NewPublisher(cfg *MQTTConfig, symbols *goadsym.SymbolAccess, logger *slog.Logger) *Publisher {
	return &Publisher{
		config:  cfg,
		symbols: symbols,
		logger:  logger,
	}
}

// IsRunning returns whether the publisher is connected and polling.
func (p *Publisher) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start connects to the broker, resolves a handle per tag and begins polling.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	opts := pahomqtt.NewClientOptions()
	if p.config.UseTLS {
		opts.AddBroker(fmt.Sprintf("ssl://%s:%d", p.config.Broker, p.config.Port))
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port))
	}
	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt: connection timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("mqtt: connect: %w", token.Error())
	}

	handles := make(map[string]goadsym.Handle, len(p.config.Tags))
	for _, tag := range p.config.Tags {
		handle, err := p.symbols.GetHandle(ctx, tag.Symbol)
		if err != nil {
			for name, h := range handles {
				p.releaseHandle(h, name)
			}
			client.Disconnect(100)
			return fmt.Errorf("mqtt: resolve tag %q: %w", tag.Symbol, err)
		}
		handles[tag.Symbol] = handle
	}

	pollCtx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.client = client
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	p.handles = handles
	p.lastValues = make(map[string][]byte)
	p.mu.Unlock()

	p.logger.Info("mqtt publisher started",
		"broker", p.config.Broker,
		"tags", len(p.config.Tags),
		"interval", p.config.Interval())

	go p.poll(pollCtx)
	return nil
}

// Stop ends polling, releases the tag handles and disconnects.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	client := p.client
	handles := p.handles
	p.handles = nil
	p.mu.Unlock()

	cancel()
	<-done

	for name, handle := range handles {
		p.releaseHandle(handle, name)
	}

	client.Disconnect(250)
	p.logger.Info("mqtt publisher stopped")
}

func (p *Publisher) releaseHandle(handle goadsym.Handle, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.symbols.ReleaseHandle(ctx, handle); err != nil {
		p.logger.Warn("mqtt tag handle release failed", "symbol", name, "error", err)
	}
}

func (p *Publisher) poll(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.config.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishChanged(ctx)
		}
	}
}

func (p *Publisher) publishChanged(ctx context.Context) {
	for _, tag := range p.config.Tags {
		p.mu.Lock()
		handle, ok := p.handles[tag.Symbol]
		p.mu.Unlock()
		if !ok {
			continue
		}

		value, err := p.symbols.ReadByHandle(ctx, handle, tag.Size)
		if err != nil {
			p.logger.Debug("mqtt tag read failed", "symbol", tag.Symbol, "error", err)
			continue
		}

		p.mu.Lock()
		last := p.lastValues[tag.Symbol]
		if bytes.Equal(last, value) {
			p.mu.Unlock()
			continue
		}
		p.lastValues[tag.Symbol] = value
		client := p.client
		p.mu.Unlock()

		p.publish(client, tag, value)
	}
}

func (p *Publisher) publish(client pahomqtt.Client, tag TagSpec, value []byte) {
	msg := TagMessage{
		Topic:     p.topicFor(tag),
		Symbol:    tag.Symbol,
		Value:     value,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn("mqtt tag message marshal failed", "symbol", tag.Symbol, "error", err)
		return
	}

	token := client.Publish(msg.Topic, 0, false, payload)
	if token.WaitTimeout(time.Second) && token.Error() != nil {
		p.logger.Warn("mqtt publish failed", "topic", msg.Topic, "error", token.Error())
	}
}

func (p *Publisher) topicFor(tag TagSpec) string {
	name := tag.Topic
	if name == "" {
		name = tag.Symbol
	}
	return fmt.Sprintf("%s/%s", p.config.RootTopic, name)
}
