package sync

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// MessageReader is the subset of kafka.Reader the listener uses; swapped for
// a fake in tests.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Listener consumes remote push notifications from a Kafka topic. Each
// message body is a RemoteSnapshot payload applied to the local store.
type Listener struct {
	reader  MessageReader
	applier *Applier
	log     *logrus.Entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewListener constructs a listener over the given reader.
func NewListener(reader MessageReader, applier *Applier, log *logrus.Logger) *Listener {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Listener{reader: reader, applier: applier, log: log.WithField("component", "sync-listener")}
}

// NewKafkaReader builds a reader for the snapshot topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}

// Start launches the consume loop.
func (l *Listener) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop terminates the loop and closes the reader.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	_ = l.reader.Close()
	l.wg.Wait()
}

func (l *Listener) run(ctx context.Context) {
	defer l.wg.Done()
	for {
		message, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			l.log.WithError(err).Warn("read notification failed")
			continue
		}
		if err := l.applier.Apply(ctx, message.Value); err != nil {
			l.log.WithError(err).Warn("apply remote snapshot failed")
		}
	}
}
