// utils/archive.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"training-arena-system/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var r2Client *s3.Client
var r2Bucket string
var cdnBaseURL string

// InitArchive sets up the R2 client for action-log archival. Archival
// is best-effort: session state never depends on it.
func InitArchive(cfg *config.Config) error {
	r2Bucket = cfg.ArchiveBucket
	cdnBaseURL = cfg.ArchiveCDNBase
	if cdnBaseURL == "" {
		cdnBaseURL = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.ArchiveAccount)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.ArchiveKeyID, cfg.ArchiveSecret, "",
		)),
		awsconfig.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.ArchiveAccount),
				}, nil
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to load R2 config: %w", err)
	}

	r2Client = s3.NewFromConfig(awsCfg)
	return nil
}

// ArchiveSessionLog uploads one finished session's JSON action log and
// returns the public URL. Keys are date-partitioned so old logs are
// easy to expire with a bucket lifecycle rule.
func ArchiveSessionLog(sessionID string, payload []byte) (string, error) {
	if r2Client == nil {
		return "", fmt.Errorf("archive client not initialized")
	}

	key := fmt.Sprintf("sessions/%s/%s.json", time.Now().UTC().Format("2006-01-02"), sessionID)

	_, err := r2Client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(r2Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	url := fmt.Sprintf("%s/%s", cdnBaseURL, key)
	return url, nil
}
