package storage

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockS3Client is a mock implementation of S3Client for testing
type MockS3Client struct {
	// Objects stores mock S3 objects keyed by object key
	Objects map[string]*MockS3Object
	// Err is returned from every operation except AbortMultipartUpload when set
	Err error
	// Track function calls
	PutObjectCalled bool
	GetObjectCalled bool
	// Store last call parameters
	LastBucket    string
	LastObjectKey string
}

// MockS3Object represents a stored object with content and metadata
type MockS3Object struct {
	Key         string
	Content     []byte
	ContentType string
}

// NewMockS3Client creates a new mock S3 client
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{Objects: make(map[string]*MockS3Object)}
}

// HeadBucket mocks checking bucket existence
func (m *MockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &s3.HeadBucketOutput{}, nil
}

// PutObject mocks uploading an object
func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.PutObjectCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if m.Err != nil {
		return nil, m.Err
	}
	key := aws.ToString(params.Key)
	m.LastObjectKey = key
	content, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.Objects[key] = &MockS3Object{
		Key:         key,
		Content:     content,
		ContentType: aws.ToString(params.ContentType),
	}
	return &s3.PutObjectOutput{}, nil
}

// GetObject mocks retrieving an object
func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.GetObjectCalled = true
	if m.Err != nil {
		return nil, m.Err
	}
	key := aws.ToString(params.Key)
	m.LastObjectKey = key
	obj, ok := m.Objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(obj.Content))),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Content))),
	}, nil
}

// ListObjectsV2 mocks listing objects under a prefix
func (m *MockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	prefix := aws.ToString(params.Prefix)
	var contents []types.Object
	for key, obj := range m.Objects {
		if strings.HasPrefix(key, prefix) {
			contents = append(contents, types.Object{
				Key:  aws.String(key),
				Size: aws.Int64(int64(len(obj.Content))),
			})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

// CreateMultipartUpload mocks starting a multipart upload. Test payloads are
// small enough that the managed uploader never takes this path; the stubs
// exist to satisfy the uploader's client interface.
func (m *MockS3Client) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("mock-upload")}, nil
}

// UploadPart mocks uploading one part
func (m *MockS3Client) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &s3.UploadPartOutput{ETag: aws.String("mock-etag")}, nil
}

// CompleteMultipartUpload mocks finishing a multipart upload
func (m *MockS3Client) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &s3.CompleteMultipartUploadOutput{}, nil
}

// AbortMultipartUpload mocks abandoning a multipart upload
func (m *MockS3Client) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

// MockPresigner is a mock S3Presigner producing deterministic URLs.
type MockPresigner struct {
	Err     error
	LastTTL time.Duration
}

// PresignGetObject returns a deterministic signed URL for the requested key.
func (m *MockPresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	m.LastTTL = opts.Expires
	url := "https://" + aws.ToString(params.Bucket) + ".s3.example.com/" +
		aws.ToString(params.Key) + "?signed=true"
	return &v4.PresignedHTTPRequest{URL: url, Method: "GET"}, nil
}
