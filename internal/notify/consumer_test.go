package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteguard/internal/config"
	"siteguard/internal/dao"
)

func newTestConsumer(t *testing.T, handler EventHandler) *Consumer {
	conf := config.DefaultConfig().NSQ
	c, err := NewConsumer(context.Background(), conf, handler)
	require.NoError(t, err)
	t.Cleanup(func() { c.cancel() })
	return c
}

func TestConsumerHandleMessage(t *testing.T) {
	var got []*dao.RunEvent
	c := newTestConsumer(t, func(ctx context.Context, ev *dao.RunEvent) error {
		got = append(got, ev)
		return nil
	})

	body, err := json.Marshal(&dao.RunEvent{RunId: "r1", SiteId: "SITE_001", ComplianceScore: 80})
	require.NoError(t, err)
	require.NoError(t, c.HandleMessage(nsq.NewMessage(nsq.MessageID{}, body)))

	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].RunId)
	assert.Equal(t, 80, got[0].ComplianceScore)
}

func TestConsumerDropsMalformed(t *testing.T) {
	called := false
	c := newTestConsumer(t, func(ctx context.Context, ev *dao.RunEvent) error {
		called = true
		return nil
	})

	assert.NoError(t, c.HandleMessage(nsq.NewMessage(nsq.MessageID{}, []byte("{not json"))))
	assert.False(t, called)
}

func TestConsumerRequeuesOnHandlerError(t *testing.T) {
	c := newTestConsumer(t, func(ctx context.Context, ev *dao.RunEvent) error {
		return errors.New("boom")
	})

	err := c.HandleMessage(nsq.NewMessage(nsq.MessageID{}, []byte(`{"runId":"r2"}`)))
	assert.Error(t, err)
}

func TestEscalatorNeedsAttention(t *testing.T) {
	e := NewEscalator(context.Background(), 70, nil)

	assert.Equal(t, "", e.NeedsAttention(&dao.RunEvent{State: dao.RunStateComplete, ComplianceScore: 90}))
	assert.Equal(t, "run failed", e.NeedsAttention(&dao.RunEvent{State: dao.RunStateFailed, ComplianceScore: 100}))
	assert.Equal(t, "compliance 65 below 70", e.NeedsAttention(&dao.RunEvent{ComplianceScore: 65}))
	assert.Equal(t, "2 critical alerts", e.NeedsAttention(&dao.RunEvent{
		ComplianceScore: 95,
		Alerts: []*dao.Alert{
			{Type: dao.AlertTypeNoHelmet},
			{Type: dao.AlertTypeVestMissing},
			{Type: dao.AlertTypeNoHelmet},
		},
	}))
}

func TestEscalatorHandle(t *testing.T) {
	var buf bytes.Buffer
	e := NewEscalator(context.Background(), 70, &buf)
	ctx := context.Background()

	require.NoError(t, e.Handle(ctx, &dao.RunEvent{RunId: "ok", ComplianceScore: 95}))
	require.NoError(t, e.Handle(ctx, &dao.RunEvent{RunId: "sim", ComplianceScore: 65, Simulated: true}))
	assert.Zero(t, buf.Len())

	require.NoError(t, e.Handle(ctx, &dao.RunEvent{RunId: "low", SiteId: "SITE_002", ComplianceScore: 40}))

	var line struct {
		RunId  string `json:"runId"`
		SiteId string `json:"siteId"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "low", line.RunId)
	assert.Equal(t, "SITE_002", line.SiteId)
	assert.Equal(t, "compliance 40 below 70", line.Reason)
}
