package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"siteguard/internal/notify"
)

var (
	consumeMinScore int
	consumeOutput   string
)

var consumeCommand = &cobra.Command{
	Use:   "consume",
	Short: "Consume run events from NSQ and escalate the ones that need attention",
	Run: func(cmd *cobra.Command, args []string) {
		runConsume()
	},
}

func init() {
	consumeCommand.Flags().IntVar(&consumeMinScore, "min-score", 70, "Escalate runs with a compliance score below this")
	consumeCommand.Flags().StringVarP(&consumeOutput, "output", "o", "", "Append escalations as JSON lines to this file")
}

func runConsume() {
	conf := loadConfig()

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var w io.Writer
	if consumeOutput != "" {
		f, err := os.OpenFile(consumeOutput, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			logrus.Fatalf("open output error, %s", err.Error())
		}
		defer f.Close()
		w = f
	}

	escalator := notify.NewEscalator(ctx, consumeMinScore, w)
	consumer, err := notify.NewConsumer(ctx, conf.NSQ, escalator.Handle)
	if err != nil {
		logrus.Fatalf("newConsumer error, %s", err.Error())
	}
	if err := consumer.Start(); err != nil {
		logrus.Fatalf("consumer start error, %s", err.Error())
	}

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	<-termChan
	logrus.Infof("consumer is shutting down...")
	consumer.Stop()
}
