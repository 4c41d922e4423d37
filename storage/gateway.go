// Package storage provides the artifact store gateway over S3-compatible
// object storage. Report workbooks and 7501 batch PDFs are uploaded under a
// fixed key convention, downloadable by key, and shareable through presigned
// URLs with a configurable TTL.
//
// Key layout:
//
//	{prefix}/customizable-reports/{XXX-XXXXXXXX} {airport} {customer}[_V2].xlsx
//	{prefix}/7501-batch-pdfs/{XXX-XXXXXXXX} {airport} {customer}.pdf
//
// Keys are deterministic from the MAWB, airport code, customer, and template
// name so they can be recomputed without the original filename.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/fteops/dutyrecon/models"
)

// Content types for the two artifact kinds.
const (
	ContentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF   = "application/pdf"
)

// Options configures a Gateway.
type Options struct {
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Prefix     string        // key prefix, default "netchb-duty"
	PresignTTL time.Duration // default 1h
}

// Gateway is the artifact store client.
type Gateway struct {
	client    S3Client
	uploader  *manager.Uploader
	presigner S3Presigner
	bucket    string
	prefix    string
	ttl       time.Duration
	log       logrus.FieldLogger
}

// New builds a Gateway backed by the AWS SDK using static credentials.
func New(ctx context.Context, opts Options, log logrus.FieldLogger) (*Gateway, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return NewWithClient(client, s3.NewPresignClient(client), opts, log), nil
}

// NewWithClient builds a Gateway over injected S3 client implementations.
func NewWithClient(client S3Client, presigner S3Presigner, opts Options, log logrus.FieldLogger) *Gateway {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "netchb-duty"
	}
	ttl := opts.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gateway{
		client:    client,
		uploader:  manager.NewUploader(client),
		presigner: presigner,
		bucket:    opts.Bucket,
		prefix:    prefix,
		ttl:       ttl,
		log:       log,
	}
}

// Prefix returns the configured key prefix.
func (g *Gateway) Prefix() string { return g.prefix }

// UploadBytes stores content under key with the given content type. The
// managed uploader splits large PDFs into multipart uploads transparently.
func (g *Gateway) UploadBytes(ctx context.Context, key, contentType string, content []byte) error {
	_, err := g.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	g.log.WithFields(logrus.Fields{"key": key, "bytes": len(content)}).Info("artifact uploaded")
	return nil
}

// Download retrieves the content stored under key.
func (g *Gateway) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Presign returns a time-limited GET URL for key. A zero ttl uses the
// configured default.
func (g *Gateway) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = g.ttl
	}
	req, err := g.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// ExcelKey computes the report workbook key for a MAWB. Template names
// containing "shoaib" get the _V2 suffix.
func (g *Gateway) ExcelKey(mawb, airportCode, customer, templateName string) string {
	name := artifactName(mawb, airportCode, customer)
	if strings.Contains(strings.ToLower(templateName), "shoaib") {
		name += "_V2"
	}
	return g.prefix + "/customizable-reports/" + name + ".xlsx"
}

// PDFKey computes the 7501 batch PDF key for a MAWB.
func (g *Gateway) PDFKey(mawb, airportCode, customer string) string {
	return g.prefix + "/7501-batch-pdfs/" + artifactName(mawb, airportCode, customer) + ".pdf"
}

// artifactName joins the formatted MAWB with the optional airport and
// customer parts, space separated, with path-unsafe characters replaced.
func artifactName(mawb, airportCode, customer string) string {
	parts := []string{models.FormatMAWB(mawb)}
	for _, p := range []string{airportCode, customer} {
		if safe := sanitizePart(p); safe != "" {
			parts = append(parts, safe)
		}
	}
	return strings.Join(parts, " ")
}

func sanitizePart(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "/", "-")
	p = strings.ReplaceAll(p, "\\", "-")
	return p
}
