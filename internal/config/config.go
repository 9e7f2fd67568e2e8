package config

import (
	"fmt"
	"os"
	"path"
	"time"
)

type SiteConfig struct {
	Id       string `yaml:"id" validate:"required"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Video    string `yaml:"video"`
	Workers  int    `yaml:"workers" validate:"gte=0"`
	Cameras  int    `yaml:"cameras" validate:"gte=0"`
}

type StreamConfig struct {
	DefaultFps    float64 `yaml:"defaultFps" validate:"gt=0"`
	MaxConcurrent int64   `yaml:"maxConcurrent" validate:"gt=0"`
	Loop          bool    `yaml:"loop"`
	// Device is the capture device used when a site has no video file, -1 disables it.
	Device      int `yaml:"device"`
	Width       int `yaml:"width" validate:"gt=0"`
	Height      int `yaml:"height" validate:"gt=0"`
	JpegQuality int `yaml:"jpegQuality" validate:"gte=1,lte=100"`
}

type TritonConfig struct {
	ServerAddr string `yaml:"serverAddr"`
	ModelName  string `yaml:"modelName"`
	// Labels is the comma separated class list of the model, index == class id.
	Labels string `yaml:"labels"`
}

type DetectorConfig struct {
	// Backend is "triton" or "simulated".
	Backend       string       `yaml:"backend" validate:"oneof=triton simulated"`
	ConfThreshold float32      `yaml:"confThreshold" validate:"gte=0,lte=1"`
	Triton        TritonConfig `yaml:"triton"`
	// Fallback selects the stand-in used when the model is unavailable: "random" or "present".
	Fallback string `yaml:"fallback" validate:"oneof=random present"`
	Seed     int64  `yaml:"seed"`
}

type ClassifierConfig struct {
	HeadCovering []string `yaml:"headCovering" validate:"min=1"`
	FaceCovering []string `yaml:"faceCovering" validate:"min=1"`
	Vest         []string `yaml:"vest" validate:"min=1"`
}

type AlertPolicyConfig struct {
	HeadInterval int     `yaml:"headInterval" validate:"gte=0"`
	FaceInterval int     `yaml:"faceInterval" validate:"gte=0"`
	VestInterval int     `yaml:"vestInterval" validate:"gte=0"`
	Penalty      int     `yaml:"penalty" validate:"gte=0"`
	MaxScore     int     `yaml:"maxScore" validate:"gte=0,lte=100"`
	FloorScore   int     `yaml:"floorScore" validate:"gte=0,ltefield=MaxScore"`
	HeadConf     float32 `yaml:"headConfidence"`
	FaceConf     float32 `yaml:"faceConfidence"`
	VestConf     float32 `yaml:"vestConfidence"`
}

type AnalysisConfig struct {
	SampleInterval int               `yaml:"sampleInterval" validate:"gt=0"`
	DefaultFps     float64           `yaml:"defaultFps" validate:"gt=0"`
	KeepAlerts     int               `yaml:"keepAlerts" validate:"gt=0"`
	Policy         AlertPolicyConfig `yaml:"policy"`
}

type WatcherConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Dir           string   `yaml:"dir" validate:"required"`
	Extensions    []string `yaml:"extensions" validate:"min=1"`
	StableWaitSec int      `yaml:"stableWaitSec" validate:"gte=0"`
	SiteCount     int      `yaml:"siteCount" validate:"gt=0"`
}

type TaskConfig struct {
	MaxConcurrent int64 `yaml:"maxConcurrent" validate:"gt=0"`
	RetentionSec  int   `yaml:"retentionSec" validate:"gte=0"`
}

type NSQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	NSQDAddr string `yaml:"nsqdAddr"`
	Topic    string `yaml:"topic"`
	// Channel is the consumer channel used by the consume command.
	Channel string `yaml:"channel"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
	Region          string `yaml:"region"`
}

type Config struct {
	Addr       string           `yaml:"addr" validate:"required"`
	SSLCert    string           `yaml:"sslCert"`
	SSLKey     string           `yaml:"sslKey"`
	JwtSecret  string           `yaml:"jwtSecret"`
	WorkDir    string           `yaml:"workDir" validate:"required"`
	VideosDir  string           `yaml:"videosDir" validate:"required"`
	Sites      []SiteConfig     `yaml:"sites" validate:"dive"`
	Stream     StreamConfig     `yaml:"stream"`
	Detector   DetectorConfig   `yaml:"detector"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Watcher    WatcherConfig    `yaml:"watcher"`
	Task       TaskConfig       `yaml:"task"`
	NSQ        NSQConfig        `yaml:"nsq"`
	S3         S3Config         `yaml:"s3"`
}

func (c Config) ResultsDir() string {
	return path.Join(c.WorkDir, "ppe_results")
}

func (c Config) DataDir() string {
	return path.Join(c.WorkDir, "data")
}

func (c Config) StableWait() time.Duration {
	return time.Duration(c.Watcher.StableWaitSec) * time.Second
}

func (c Config) TaskRetention() time.Duration {
	return time.Duration(c.Task.RetentionSec) * time.Second
}

// VideoPath resolves a site's video relative to VideosDir.
func (c Config) VideoPath(site SiteConfig) string {
	if site.Video == "" || path.IsAbs(site.Video) {
		return site.Video
	}
	return path.Join(c.VideosDir, site.Video)
}

func defaultSites() []SiteConfig {
	return []SiteConfig{
		{Id: "SITE_001", Name: "Downtown Plaza Construction", Location: "New York, NY", Video: "site1_construction.mp4", Workers: 45, Cameras: 12},
		{Id: "SITE_002", Name: "Riverside Complex", Location: "Chicago, IL", Video: "site2_construction.mp4", Workers: 32, Cameras: 8},
		{Id: "SITE_003", Name: "Tech Hub Center", Location: "Austin, TX", Video: "site3_construction.mp4", Workers: 28, Cameras: 10},
		{Id: "SITE_004", Name: "Harbor Bridge Project", Location: "San Francisco, CA", Video: "site4_construction.mp4", Workers: 60, Cameras: 15},
	}
}

func DefaultConfig() *Config {
	cfg := &Config{
		Addr:      "0.0.0.0:2000",
		VideosDir: "videos",
		Sites:     defaultSites(),
		Stream: StreamConfig{
			DefaultFps:    10,
			MaxConcurrent: 16,
			Loop:          true,
			Device:        -1,
			Width:         640,
			Height:        480,
			JpegQuality:   80,
		},
		Detector: DetectorConfig{
			Backend:       "simulated",
			ConfThreshold: 0.25,
			Triton: TritonConfig{
				ServerAddr: "localhost:8001",
				ModelName:  "ppe_yolo",
				Labels:     "person,helmet,mask,vest",
			},
			Fallback: "random",
		},
		Classifier: ClassifierConfig{
			HeadCovering: []string{"helmet", "hard hat", "hat", "headgear", "hardhat", "safety helmet"},
			FaceCovering: []string{"mask", "face mask", "facemask"},
			Vest:         []string{"vest", "safety vest", "reflective vest", "high visibility vest", "hi vis"},
		},
		Analysis: AnalysisConfig{
			SampleInterval: 30,
			DefaultFps:     24,
			KeepAlerts:     10,
			Policy: AlertPolicyConfig{
				HeadInterval: 1,
				FaceInterval: 0,
				VestInterval: 60,
				Penalty:      5,
				MaxScore:     100,
				FloorScore:   0,
				HeadConf:     0.92,
				FaceConf:     0.80,
				VestConf:     0.87,
			},
		},
		Watcher: WatcherConfig{
			Enabled:       false,
			Extensions:    []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv"},
			StableWaitSec: 3,
			SiteCount:     4,
		},
		Task: TaskConfig{
			MaxConcurrent: 2,
			RetentionSec:  3600,
		},
		NSQ: NSQConfig{
			NSQDAddr: "localhost:4150",
			Topic:    "ppe_results",
			Channel:  "siteguard-consumer",
		},
		S3: S3Config{
			Bucket:   "siteguard",
			Endpoint: "127.0.0.1:9000",
			UseSSL:   false,
			Region:   "us-east-1",
		},
	}

	dataDir := os.Getenv("SITEGUARD_DATA")
	if dataDir != "" {
		cfg.WorkDir = dataDir
		cfg.Watcher.Dir = path.Join(dataDir, "construction_videos")
	} else {
		cfg.WorkDir = "."
		cfg.Watcher.Dir = "construction_videos"
	}

	return cfg
}

func (c *Config) FindSite(id string) (SiteConfig, bool) {
	for _, s := range c.Sites {
		if s.Id == id {
			return s, true
		}
	}
	return SiteConfig{}, false
}

func (c *Config) String() string {
	return fmt.Sprintf("addr=%s workDir=%s videosDir=%s sites=%d detector=%s watcher=%v nsq=%v s3=%v",
		c.Addr, c.WorkDir, c.VideosDir, len(c.Sites), c.Detector.Backend, c.Watcher.Enabled, c.NSQ.Enabled, c.S3.Enabled)
}
