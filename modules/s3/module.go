package s3

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
	"github.com/vk/burstmission/modules/file"
)

const schema = `{
  "type": "object",
  "required": ["source_path"],
  "properties": {
    "source_path": {"type": "string", "minLength": 1},
    "upload_url": {"type": "string", "pattern": "^https?://"},
    "bucket": {"type": "string"},
    "key": {"type": "string"},
    "region": {"type": "string"},
    "endpoint": {"type": "string"},
    "content_type": {"type": "string"}
  },
  "oneOf": [
    {"required": ["upload_url"]},
    {"required": ["bucket", "key"]}
  ]
}`

// PutObjectAPI is the part of the S3 client the upload uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ClientFactory builds an S3 client for a region and optional endpoint.
type ClientFactory func(ctx context.Context, region, endpoint string) (PutObjectAPI, error)

// Module implements the registry.Module interface for this package.
type Module struct {
	// HTTPClient performs presigned uploads. Nil means a shared client.
	HTTPClient *http.Client
	// NewClient builds SDK clients for bucket uploads. Nil means
	// NewSDKClient.
	NewClient ClientFactory
}

// httpClient is shared by all presigned uploads to reuse TCP connections.
var httpClient = &http.Client{}

// Input defines the parameters of s3_upload. Either UploadURL or Bucket
// and Key must be set.
type Input struct {
	SourcePath  string `param:"source_path"`
	UploadURL   string `param:"upload_url"`
	Bucket      string `param:"bucket"`
	Key         string `param:"key"`
	Region      string `param:"region"`
	Endpoint    string `param:"endpoint"`
	ContentType string `param:"content_type"`
}

// Output describes a finished upload.
type Output struct {
	Success  bool   `json:"success"`
	Status   string `json:"status,omitempty"`
	Location string `json:"location"`
	ETag     string `json:"etag,omitempty"`
	Size     int64  `json:"size"`
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("s3_upload", schema, m.Upload))
}

// Upload sends a local file either to a presigned URL or to a bucket
// through the AWS SDK.
func (m *Module) Upload(ctx context.Context, params map[string]any) (any, error) {
	var in Input
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	path, err := file.SanitizePath(in.SourcePath)
	if err != nil {
		return nil, err
	}
	in.SourcePath = path
	if in.ContentType == "" {
		in.ContentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if in.ContentType == "" {
		in.ContentType = "application/octet-stream"
	}

	switch {
	case in.UploadURL != "":
		return m.uploadPresigned(ctx, &in)
	case in.Bucket != "" && in.Key != "":
		return m.uploadObject(ctx, &in)
	default:
		return nil, errors.New("either upload_url or bucket and key are required")
	}
}

// uploadPresigned PUTs the file to a presigned URL.
func (m *Module) uploadPresigned(ctx context.Context, in *Input) (any, error) {
	logger := ctxlog.FromContext(ctx).With("action", "upload", "mode", "presigned")

	f, size, err := open(in.SourcePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, in.UploadURL, f)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 upload request: %w", err)
	}
	req.Header.Set("Content-Type", in.ContentType)
	req.ContentLength = size

	logger.Info("Uploading file to S3", "source", in.SourcePath, "size", size, "contentType", in.ContentType)

	client := m.HTTPClient
	if client == nil {
		client = httpClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute S3 upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("S3 upload failed with status: %s", resp.Status)
	}

	logger.Info("Successfully uploaded file", "status", resp.Status)
	return Output{
		Success:  true,
		Status:   resp.Status,
		Location: req.URL.Scheme + "://" + req.URL.Host + req.URL.Path,
		ETag:     resp.Header.Get("ETag"),
		Size:     size,
	}, nil
}

// uploadObject stores the file with PutObject.
func (m *Module) uploadObject(ctx context.Context, in *Input) (any, error) {
	logger := ctxlog.FromContext(ctx).With("action", "upload", "mode", "bucket", "bucket", in.Bucket)

	newClient := m.NewClient
	if newClient == nil {
		newClient = NewSDKClient
	}
	client, err := newClient(ctx, in.Region, in.Endpoint)
	if err != nil {
		return nil, err
	}

	f, size, err := open(in.SourcePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	logger.Info("Uploading file to S3", "source", in.SourcePath, "key", in.Key, "size", size)

	out, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(in.Bucket),
		Key:           aws.String(in.Key),
		Body:          f,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(in.ContentType),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put failed for s3://%s/%s: %w", in.Bucket, in.Key, err)
	}

	logger.Info("Successfully uploaded file")
	return Output{
		Success:  true,
		Location: fmt.Sprintf("s3://%s/%s", in.Bucket, in.Key),
		ETag:     aws.ToString(out.ETag),
		Size:     size,
	}, nil
}

// NewSDKClient loads the default AWS configuration. A custom endpoint
// switches to path-style addressing for S3-compatible stores.
func NewSDKClient(ctx context.Context, region, endpoint string) (PutObjectAPI, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func open(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open source file '%s': %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to get file stats for '%s': %w", path, err)
	}
	return f, stat.Size(), nil
}
