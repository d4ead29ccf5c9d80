package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectPutter is the part of *s3.Client the outbox uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Settings configures the outbox bucket (MinIO-compatible).
type S3Settings struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	AppBaseURL   string
}

// S3Outbox writes each message as a JSON object for a mail relay to pick up.
type S3Outbox struct {
	client     ObjectPutter
	bucket     string
	appBaseURL string
	now        func() time.Time
}

type outboxRecord struct {
	To        string    `json:"to"`
	Purpose   string    `json:"purpose"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

// NewS3Client builds a path-style S3 client from static credentials.
func NewS3Client(ctx context.Context, s S3Settings) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

func NewS3Outbox(client ObjectPutter, bucket, appBaseURL string) *S3Outbox {
	return &S3Outbox{client: client, bucket: bucket, appBaseURL: appBaseURL, now: time.Now}
}

func (o *S3Outbox) objectKey(m Message, at time.Time) string {
	return fmt.Sprintf("outbox/%s/%04d/%02d/%02d/%s.json", m.Purpose, at.Year(), at.Month(), at.Day(), uuid.New())
}

func (o *S3Outbox) Send(ctx context.Context, msg Message) error {
	at := o.now().UTC()
	body, err := json.Marshal(outboxRecord{
		To:        msg.To,
		Purpose:   string(msg.Purpose),
		Link:      Link(o.appBaseURL, msg.Purpose, msg.Token),
		CreatedAt: at,
	})
	if err != nil {
		return err
	}

	key := o.objectKey(msg, at)
	_, err = o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put outbox object: %w", err)
	}
	return nil
}
