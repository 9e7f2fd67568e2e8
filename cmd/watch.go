package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var watchDir string

var watchCommand = &cobra.Command{
	Use:   "watch",
	Short: "Analyze every video dropped into the watch folder",
	Long: `Watch a folder for new construction site videos and analyze each one once.
Processed file names are kept in processed_files.log inside the folder.`,
	Run: func(cmd *cobra.Command, args []string) {
		runWatch()
	},
}

func init() {
	watchCommand.Flags().StringVarP(&watchDir, "dir", "d", "", "Folder to watch, overrides watcher.dir")
}

func runWatch() {
	conf := loadConfig()
	if watchDir != "" {
		conf.Watcher.Dir = watchDir
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	a, err := newApp(ctx, conf)
	if err != nil {
		logrus.Fatalf("init error, %s", err.Error())
	}
	defer a.close()

	_, done := startWatcher(ctx, a)
	logrus.Infof("watching %s", conf.Watcher.Dir)

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-termChan:
		logrus.Infof("watcher is shutting down...")
	case <-done:
	}
	cancelFunc()
	<-done
}
