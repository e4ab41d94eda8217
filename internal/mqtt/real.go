package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/keymatrix/internal/keys"
)

// bufferCapacity bounds how many messages are held while the broker is away.
const bufferCapacity = 1000

// publishTimeout bounds the wait for a single publish token.
const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker.
// Messages published while disconnected are buffered and replayed, in
// order, once the client reconnects. A live publish never overtakes a
// replay in progress.
type RealPublisher struct {
	client paho.Client

	// mu serializes the connection check, buffering and sending, so a
	// reconnect cannot drain the buffer between a failed check and the push.
	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is established in the background; the daemon keeps scanning while the
// broker is unreachable.
func NewRealPublisher(broker string) *RealPublisher {
	p := newRealPublisher(nil)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("keymatrix").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			log.Printf("mqtt: connected to %s", broker)
			p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	setWill(opts, time.Now())

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

// setWill registers the retained last will. The broker sends it as is, so
// its timestamp is sessionStart rather than the time the connection dropped.
func setWill(opts *paho.ClientOptions, sessionStart time.Time) {
	will, err := FormatSystemPayload(WillEvent(sessionStart))
	if err != nil {
		log.Printf("mqtt: no last will registered: %v", err)
		return
	}
	opts.SetBinaryWill(TopicSystem, will, 1, true)
}

func newRealPublisher(client paho.Client) *RealPublisher {
	return &RealPublisher{client: client, buf: newRingBuffer(bufferCapacity)}
}

// Publish sends a key event to the MQTT broker.
func (p *RealPublisher) Publish(event keys.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		if p.buf.push(msg) {
			log.Printf("mqtt: buffer full (%d messages), dropping oldest", bufferCapacity)
		}
		return nil
	}
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// flush replays buffered messages after a (re)connect. It holds mu for the
// whole replay; paho runs the connect handler on its own goroutine.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs, dropped := p.buf.drainAll()
	if len(msgs) == 0 && dropped == 0 {
		return
	}
	log.Printf("mqtt: replaying %d buffered messages (%d dropped)", len(msgs), dropped)

	for _, msg := range msgs {
		if err := p.send(msg); err != nil {
			log.Printf("mqtt: replay failed: %v", err)
		}
	}
}

// IsConnected reports whether the client currently holds an open connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
