package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"siteguard/internal/server"
	"siteguard/internal/vision"
	"siteguard/pkg/log"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Tools for siteguard",
	Long:  `Various tools and utilities for siteguard.`,
}

var (
	tokenSubject string
	tokenTTL     time.Duration
	inputVideo   string
	outputVideo  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin token for the analysis endpoints",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig()
		if conf.JwtSecret == "" {
			logrus.Fatal("jwtSecret is not set, admin endpoints are open")
		}
		token, err := server.NewToken(conf.JwtSecret, tokenSubject, true, tokenTTL)
		if err != nil {
			logrus.Fatal(err)
		}
		fmt.Println(token)
	},
}

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Draw the detections of the configured model onto a video",
	Long:  `Run the configured detector on every frame of a video and write the annotated frames to a new file.`,
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		detector, err := newDetector(ctx, conf)
		if err != nil {
			logrus.Warnf("%s, annotating with %s", err.Error(), detector.Name())
		}
		logger := log.ComponentLogger(ctx, "annotate")
		n, err := vision.Annotate(ctx, detector, inputVideo, outputVideo, logger)
		if err != nil {
			logrus.Fatalf("error processing video: %v", err)
		}
		logger.Infof("wrote %d frames to %s", n, outputVideo)
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 7*24*time.Hour, "Token lifetime")

	annotateCmd.Flags().StringVarP(&inputVideo, "input", "i", "in.mp4", "Input video file path")
	annotateCmd.Flags().StringVarP(&outputVideo, "output", "o", "out.mp4", "Output video file path")

	toolsCmd.AddCommand(tokenCmd)
	toolsCmd.AddCommand(annotateCmd)
}
