package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"siteguard/internal/dao"
	"siteguard/internal/site"
	"siteguard/internal/watcher"
)

var analyzeSite string

var analyzeCommand = &cobra.Command{
	Use:   "analyze <video>",
	Short: "Analyze one video and print the result",
	Long: `Analyze one video file and print the run summary as JSON.
Without --site the site id is derived from the file name.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAnalyze(args[0]); err != nil {
			logrus.Fatal(err)
		}
	},
}

func init() {
	analyzeCommand.Flags().StringVarP(&analyzeSite, "site", "s", "", "Site id, for example SITE_001")
}

func runAnalyze(videoPath string) error {
	conf := loadConfig()

	ctx, cancelFunc := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancelFunc()

	a, err := newApp(ctx, conf)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.close()

	var assignment *dao.SiteAssignment
	siteId := site.Canonical(analyzeSite)
	if analyzeSite == "" {
		base := filepath.Base(videoPath)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		resolver := watcher.Chain{
			watcher.SiteNumberRule{},
			watcher.GenericSiteRule{},
			watcher.RoundRobin{Sites: conf.Watcher.SiteCount},
		}
		sa, _ := resolver.Resolve(stem)
		siteId = sa.SiteId
		assignment = &sa
	}

	t, err := a.tasks.Submit("analyze "+siteId, siteId, func(ctx context.Context) (*dao.AnalysisResult, error) {
		return a.analyzer.Analyze(ctx, siteId, videoPath)
	})
	if err != nil {
		return err
	}
	res, runErr := t.Wait(ctx)
	if res != nil {
		res.Assignment = assignment
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return runErr
}
