package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"

	"siteguard/internal/config"
	"siteguard/internal/dao"
	"siteguard/pkg/log"
)

// EventHandler processes one run event. Returning an error requeues the message.
type EventHandler func(ctx context.Context, ev *dao.RunEvent) error

// Consumer reads the run events published by NSQNotifier.
type Consumer struct {
	conf     config.NSQConfig
	ctx      context.Context
	cancel   context.CancelFunc
	consumer *nsq.Consumer
	handler  EventHandler
	wg       sync.WaitGroup
	logger   *logrus.Entry
}

func NewConsumer(ctx context.Context, conf config.NSQConfig, handler EventHandler) (*Consumer, error) {
	ctx, cancel := context.WithCancel(ctx)

	nsqConf := nsq.NewConfig()
	nsqConf.MsgTimeout = time.Minute
	nsqConf.MaxInFlight = 10
	nsqConf.MaxAttempts = 2

	consumer, err := nsq.NewConsumer(conf.Topic, conf.Channel, nsqConf)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create NSQ consumer: %w", err)
	}

	c := &Consumer{
		conf:     conf,
		ctx:      ctx,
		cancel:   cancel,
		consumer: consumer,
		handler:  handler,
		logger:   log.ComponentLogger(ctx, "consumer"),
	}
	consumer.AddHandler(c)

	return c, nil
}

func (c *Consumer) HandleMessage(message *nsq.Message) error {
	return c.handle(message.Body)
}

func (c *Consumer) handle(body []byte) error {
	var ev dao.RunEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		// a malformed event will not get better on retry
		c.logger.WithError(err).Error("drop malformed run event")
		return nil
	}

	c.logger.WithFields(logrus.Fields{
		"run":        ev.RunId,
		"site":       ev.SiteId,
		"state":      ev.State,
		"score":      ev.ComplianceScore,
		"violations": ev.TotalViolations,
		"simulated":  ev.Simulated,
	}).Debug("run event received")

	if err := c.handler(c.ctx, &ev); err != nil {
		c.logger.WithError(err).Errorf("handle run event %s", ev.RunId)
		return err
	}
	return nil
}

func (c *Consumer) Start() error {
	c.logger.Infof("consuming %s/%s from %s", c.conf.Topic, c.conf.Channel, c.conf.NSQDAddr)

	if err := c.consumer.ConnectToNSQD(c.conf.NSQDAddr); err != nil {
		return fmt.Errorf("failed to connect to NSQ: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-c.ctx.Done()
		c.consumer.Stop()
		<-c.consumer.StopChan
	}()

	return nil
}

func (c *Consumer) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Escalator reports runs that need attention: failed runs, runs under minScore and runs with
// critical alerts. Measured runs are written to w as JSON lines, simulated ones are only logged.
type Escalator struct {
	minScore int
	mu       sync.Mutex
	w        io.Writer
	logger   *logrus.Entry
}

func NewEscalator(ctx context.Context, minScore int, w io.Writer) *Escalator {
	return &Escalator{
		minScore: minScore,
		w:        w,
		logger:   log.ComponentLogger(ctx, "escalator"),
	}
}

func criticalAlerts(ev *dao.RunEvent) int {
	n := 0
	for _, a := range ev.Alerts {
		if a.Type.Severity() == dao.SeverityCritical {
			n++
		}
	}
	return n
}

// NeedsAttention reports why ev should be escalated, or "" when it should not.
func (e *Escalator) NeedsAttention(ev *dao.RunEvent) string {
	switch {
	case ev.State == dao.RunStateFailed:
		return "run failed"
	case ev.ComplianceScore < e.minScore:
		return fmt.Sprintf("compliance %d below %d", ev.ComplianceScore, e.minScore)
	case criticalAlerts(ev) > 0:
		return fmt.Sprintf("%d critical alerts", criticalAlerts(ev))
	default:
		return ""
	}
}

func (e *Escalator) Handle(ctx context.Context, ev *dao.RunEvent) error {
	reason := e.NeedsAttention(ev)
	if reason == "" {
		return nil
	}
	logger := e.logger.WithField("site", ev.SiteId)
	if ev.Simulated {
		logger.Infof("simulated run %s: %s, not escalated", ev.RunId, reason)
		return nil
	}
	logger.Warnf("run %s: %s", ev.RunId, reason)
	if e.w == nil {
		return nil
	}

	line, err := json.Marshal(struct {
		*dao.RunEvent
		Reason string `json:"reason"`
	}{ev, reason})
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write escalation: %w", err)
	}
	return nil
}
