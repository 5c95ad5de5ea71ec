// Package attachments hands out presigned S3 URLs for the documents attached
// to an internship application (CV and cover letter). Clients upload and
// download directly against object storage.
package attachments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
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

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Kind is the type of document.
type Kind string

const (
	KindCV          Kind = "cv"
	KindCoverLetter Kind = "cover_letter"
)

func ParseKind(v string) (Kind, error) {
	switch k := Kind(v); k {
	case KindCV, KindCoverLetter:
		return k, nil
	}
	return "", fmt.Errorf("unknown attachment kind %q", v)
}

const keyRoot = "applications/"

// NewKey returns a fresh storage key for kind.
func NewKey(kind Kind, now time.Time) string {
	return fmt.Sprintf("%s%s/%d/%02d/%02d/%s", keyRoot, kind, now.Year(), now.Month(), now.Day(), uuid.New())
}

// ValidKey reports whether key has the shape of a key issued for kind.
func ValidKey(kind Kind, key string) bool {
	rest, ok := strings.CutPrefix(key, keyRoot+string(kind)+"/")
	return ok && rest != "" && !strings.Contains(key, "..")
}

// Config holds the object storage settings.
type Config struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	TTL          time.Duration
}

// Upload is a presigned PUT for a newly allocated key.
type Upload struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

type Presigner struct {
	cfg Config
	now func() time.Time
}

func NewPresigner(cfg Config) *Presigner {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	return &Presigner{cfg: cfg, now: time.Now}
}

func (p *Presigner) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(p.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			p.cfg.AccessKey,
			p.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if p.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(p.cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3PresignClient(client), nil
}

// PresignUpload allocates a key for kind and returns a PUT URL for it.
func (p *Presigner) PresignUpload(ctx context.Context, kind Kind) (*Upload, error) {
	pc, err := p.presignClient(ctx)
	if err != nil {
		return nil, err
	}

	now := p.now()
	key := NewKey(kind, now)

	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.cfg.TTL))
	if err != nil {
		return nil, err
	}

	return &Upload{Key: key, URL: req.URL, ExpiresAt: now.Add(p.cfg.TTL)}, nil
}

// PresignDownload returns a GET URL for an existing key.
func (p *Presigner) PresignDownload(ctx context.Context, key string) (string, error) {
	pc, err := p.presignClient(ctx)
	if err != nil {
		return "", err
	}

	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.cfg.TTL))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
