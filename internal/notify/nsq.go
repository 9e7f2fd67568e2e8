package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"

	"siteguard/internal/config"
	"siteguard/internal/dao"
	"siteguard/pkg/log"
)

// Publisher is the subset of *nsq.Producer used here.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// NSQNotifier publishes a dao.RunEvent for every persisted run.
type NSQNotifier struct {
	producer Publisher
	topic    string
	logger   *logrus.Entry
}

func NewNSQNotifier(ctx context.Context, producer Publisher, topic string) *NSQNotifier {
	return &NSQNotifier{
		producer: producer,
		topic:    topic,
		logger:   log.ComponentLogger(ctx, "nsq"),
	}
}

// NewNSQProducer connects lazily, the first Publish dials nsqd.
func NewNSQProducer(conf config.NSQConfig) (*nsq.Producer, error) {
	producer, err := nsq.NewProducer(conf.NSQDAddr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create NSQ producer failed: %w", err)
	}
	return producer, nil
}

func (n *NSQNotifier) RunFinished(ctx context.Context, r *dao.AnalysisResult) {
	msgData, err := json.Marshal(dao.NewRunEvent(r))
	if err != nil {
		n.logger.WithError(err).Errorf("marshal run event %s", r.RunId)
		return
	}
	if err := n.producer.Publish(n.topic, msgData); err != nil {
		n.logger.WithError(err).Errorf("publish to NSQ failed for run %s", r.RunId)
		return
	}
	n.logger.Debugf("published run %s to %s", r.RunId, n.topic)
}
