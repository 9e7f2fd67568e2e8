package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"siteguard/internal/config"
	"siteguard/internal/dao"
	"siteguard/pkg/log"
)

// ObjectPutter is the subset of *minio.Client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

func NewMinioClient(conf config.S3Config) (*minio.Client, error) {
	region := conf.Region
	if region == "" {
		region = "us-east-1"
	}
	minioCli, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKeyID, conf.SecretAccessKey, ""),
		Secure: conf.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client failed: %w", err)
	}
	return minioCli, nil
}

func contentType(localPath string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(localPath), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "txt":
		return "text/plain"
	case "csv":
		return "text/csv"
	case "json":
		return "application/json"
	case "mp4":
		return "video/mp4"
	case "avi":
		return "video/avi"
	case "mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}

func UploadFile(ctx context.Context, cli ObjectPutter, bucket, localPath, objectPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file failed: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("get file info failed: %w", err)
	}

	_, err = cli.PutObject(
		ctx,
		bucket,
		strings.TrimPrefix(objectPath, "/"),
		file,
		fileInfo.Size(),
		minio.PutObjectOptions{
			ContentType: contentType(localPath),
		},
	)
	if err != nil {
		return fmt.Errorf("put object to minio failed: %w", err)
	}
	return nil
}

// S3Uploader copies the artifacts of every persisted run to object storage under
// <site>/<yyyy>/<mm>/<dd>/<run id>/.
type S3Uploader struct {
	cli     ObjectPutter
	bucket  string
	timeout time.Duration
	logger  *logrus.Entry
}

func NewS3Uploader(ctx context.Context, cli ObjectPutter, bucket string) *S3Uploader {
	return &S3Uploader{
		cli:     cli,
		bucket:  bucket,
		timeout: 30 * time.Second,
		logger:  log.ComponentLogger(ctx, "s3"),
	}
}

// ObjectPrefix is the key prefix used for the artifacts of r.
func ObjectPrefix(r *dao.AnalysisResult) string {
	ts := r.StartedAt
	return fmt.Sprintf("/%s/%04d/%02d/%02d/%s", r.SiteId, ts.Year(), ts.Month(), ts.Day(), r.RunId)
}

func (u *S3Uploader) RunFinished(ctx context.Context, r *dao.AnalysisResult) {
	files := []string{r.SummaryPath, r.CsvLog}
	seen := make(map[string]bool)
	for _, a := range r.Alerts {
		if a.Image != "" && !seen[a.Image] {
			seen[a.Image] = true
			files = append(files, a.Image)
		}
	}

	prefix := ObjectPrefix(r)
	for _, f := range files {
		if f == "" {
			continue
		}
		objectPath := prefix + "/" + filepath.Base(f)
		uctx, cancel := context.WithTimeout(ctx, u.timeout)
		err := UploadFile(uctx, u.cli, u.bucket, f, objectPath)
		cancel()
		if err != nil {
			u.logger.WithError(err).Errorf("upload %s to minio failed", f)
			continue
		}
		u.logger.Debugf("uploaded %s to %s", f, objectPath)
	}
}
