package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"siteguard/internal/server"
	"siteguard/internal/vision"
	"siteguard/internal/watcher"
)

var withWatcher bool

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server, and the ingestion watcher when enabled",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	serveCommand.Flags().BoolVar(&withWatcher, "watch", false, "Run the ingestion watcher even if disabled in the config")
}

// startWatcher runs the watcher in the background. The returned channel is closed once it stopped.
func startWatcher(ctx context.Context, a *app) (*watcher.Watcher, <-chan struct{}) {
	w, err := watcher.New(ctx, a.conf.Watcher, a.tasks, a.analyzer.Analyze, a.metrics)
	if err != nil {
		logrus.Fatalf("new watcher error, %s", err.Error())
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil {
			logrus.Errorf("watcher stopped, %s", err.Error())
		}
	}()
	return w, done
}

func runServe() {
	conf := loadConfig()

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	a, err := newApp(ctx, conf)
	if err != nil {
		logrus.Fatalf("init error, %s", err.Error())
	}
	defer a.close()

	var w *watcher.Watcher
	var watcherDone <-chan struct{}
	if conf.Watcher.Enabled || withWatcher {
		w, watcherDone = startWatcher(ctx, a)
	}

	srv, err := server.NewServer(ctx, conf, server.Options{
		Analyzer:         a.analyzer,
		Store:            a.store,
		Tasks:            a.tasks,
		Watcher:          w,
		Metrics:          a.metrics,
		StreamOpener:     streamOpener(ctx, conf),
		DecoderAvailable: vision.DecoderAvailable(),
		NSQEnabled:       a.producer != nil,
		S3Enabled:        a.s3,
	})
	if err != nil {
		logrus.Fatalf("newServer error, %s", err.Error())
	}
	go srv.Start()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	<-termChan
	logrus.Infof("server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Error(err)
	}
	cancelFunc()
	if watcherDone != nil {
		<-watcherDone
	}
}
