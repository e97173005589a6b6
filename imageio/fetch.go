package imageio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kbukum/gokit/httpclient"

	"github.com/poiesic/imgfeat/core"
)

// DefaultFetchTimeout bounds a single remote fetch.
const DefaultFetchTimeout = 30 * time.Second

// S3API is the subset of the S3 client used for fetching objects.
type S3API interface {
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

// Fetcher opens byte streams for image references.
// A Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	httpConfig httpclient.Config
	region     string

	httpOnce   sync.Once
	httpClient *httpclient.Client
	httpErr    error

	s3Once   sync.Once
	s3Client S3API
	s3Err    error
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPConfig sets the configuration of the client used for http(s)
// references.
func WithHTTPConfig(cfg httpclient.Config) FetcherOption {
	return func(f *Fetcher) {
		f.httpConfig = cfg
	}
}

// WithFetchTimeout sets the timeout of a single http(s) request.
func WithFetchTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.httpConfig.Timeout = timeout
	}
}

// WithFetchRetries retries http(s) fetches that fail with a timeout, a
// connection error, a 429 or a 5xx, for up to attempts tries in total.
// Fetches are not retried by default.
func WithFetchRetries(attempts int) FetcherOption {
	return func(f *Fetcher) {
		if attempts <= 1 {
			f.httpConfig.Retry = nil
			return
		}
		rc := httpclient.DefaultRetryConfig()
		rc.MaxAttempts = attempts
		f.httpConfig.Retry = rc
	}
}

// WithS3Client sets the client used for s3:// references.
// Without it a client is built from the default AWS credential chain on first use.
func WithS3Client(client S3API) FetcherOption {
	return func(f *Fetcher) {
		f.s3Client = client
	}
}

// WithRegion sets the AWS region used when building the default S3 client.
func WithRegion(region string) FetcherOption {
	return func(f *Fetcher) {
		f.region = region
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpConfig: httpclient.Config{Timeout: DefaultFetchTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open returns a stream of the raw bytes named by ref.
// The caller must close the returned reader.
func (f *Fetcher) Open(ctx context.Context, ref core.Reference) (io.ReadCloser, error) {
	if err := core.ValidateReference(ref); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	switch ref.Scheme() {
	case core.SchemeHTTP, core.SchemeHTTPS:
		return f.openHTTP(ctx, ref)
	case core.SchemeS3:
		return f.openS3(ctx, ref)
	default:
		file, err := os.Open(ref.Path())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		return file, nil
	}
}

func (f *Fetcher) openHTTP(ctx context.Context, ref core.Reference) (io.ReadCloser, error) {
	client, err := f.httpc()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: ref.String()})
	if err != nil {
		var herr *httpclient.Error
		if errors.As(err, &herr) && herr.StatusCode > 0 {
			return nil, fmt.Errorf("%w: %w: %d", ErrFetch, ErrHTTPStatus, herr.StatusCode)
		}
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %w: %d", ErrFetch, ErrHTTPStatus, resp.StatusCode)
	}
	return io.NopCloser(bytes.NewReader(resp.Body)), nil
}

func (f *Fetcher) httpc() (*httpclient.Client, error) {
	f.httpOnce.Do(func() {
		f.httpClient, f.httpErr = httpclient.New(f.httpConfig)
		if f.httpErr != nil {
			f.httpErr = fmt.Errorf("http client: %w", f.httpErr)
		}
	})
	return f.httpClient, f.httpErr
}

func (f *Fetcher) openS3(ctx context.Context, ref core.Reference) (io.ReadCloser, error) {
	bucket, key, ok := strings.Cut(ref.Path(), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: %w", ErrFetch, ErrInvalidS3Reference)
	}

	client, err := f.s3(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	out, err := client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: s3 get %s: %w", ErrFetch, ref, err)
	}
	return out.Body, nil
}

func (f *Fetcher) s3(ctx context.Context) (S3API, error) {
	f.s3Once.Do(func() {
		if f.s3Client != nil {
			return
		}
		var opts []func(*awsconfig.LoadOptions) error
		if f.region != "" {
			opts = append(opts, awsconfig.WithRegion(f.region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			f.s3Err = fmt.Errorf("load aws config: %w", err)
			return
		}
		f.s3Client = awss3.NewFromConfig(cfg)
	})
	return f.s3Client, f.s3Err
}
