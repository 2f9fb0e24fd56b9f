package localengine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lychee-technology/tablekernel"
)

const s3URIPrefix = "s3://"

// Storage implements tablekernel.StorageHandler over either the local
// filesystem or S3, selecting per-call based on the "s3://" URI prefix.
type Storage struct {
	s3Client   *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	breaker    *CircuitBreaker
}

// NewStorage builds a Storage handler. The S3 client is built here only when
// cfg names a region or an endpoint; a table living entirely on local disk
// never touches AWS credential resolution.
func NewStorage(ctx context.Context, cfg tablekernel.StorageConfig) (*Storage, error) {
	s := &Storage{breaker: NewCircuitBreaker(5, cfg.RequestTimeout, cfg.RequestTimeout)}
	if cfg.Region == "" && cfg.Endpoint == "" {
		return s, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = awscreds.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	s.s3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	s.uploader = manager.NewUploader(s.s3Client)
	s.downloader = manager.NewDownloader(s.s3Client)
	return s, nil
}

func splitS3URI(location string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(location, s3URIPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(location, s3URIPrefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return parts[0], "", true
	}
	return parts[0], parts[1], true
}

// List lists files under prefix, local or S3, in ascending path order.
func (s *Storage) List(ctx context.Context, prefix string) ([]tablekernel.FileMeta, error) {
	if bucket, key, ok := splitS3URI(prefix); ok {
		return s.listS3(ctx, bucket, key)
	}
	return s.listLocal(prefix)
}

func (s *Storage) listLocal(prefix string) ([]tablekernel.FileMeta, error) {
	dir := prefix
	if info, err := os.Stat(prefix); err == nil && !info.IsDir() {
		dir = filepath.Dir(prefix)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, tablekernel.NewInternalError("failed to list directory", err).WithPath(dir)
	}
	var out []tablekernel.FileMeta
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(dir, e.Name())
		if !strings.HasPrefix(full, prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, tablekernel.FileMeta{Location: full, LastModified: info.ModTime().UnixMilli(), Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out, nil
}

func (s *Storage) listS3(ctx context.Context, bucket, key string) ([]tablekernel.FileMeta, error) {
	if s.s3Client == nil {
		return nil, tablekernel.NewGenericError("S3 storage not configured")
	}
	var out []tablekernel.FileMeta
	var token *string
	for {
		resp, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(key),
			ContinuationToken: token,
		})
		if err != nil {
			s.breaker.RecordFailure()
			return nil, tablekernel.NewInternalError("failed to list S3 objects", err).WithPath(bucket + "/" + key)
		}
		s.breaker.RecordSuccess()
		for _, obj := range resp.Contents {
			out = append(out, tablekernel.FileMeta{
				Location:     fmt.Sprintf("%s%s/%s", s3URIPrefix, bucket, aws.ToString(obj.Key)),
				LastModified: obj.LastModified.UnixMilli(),
				Size:         aws.ToInt64(obj.Size),
			})
		}
		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}
	return out, nil
}

// ReadBytes reads length bytes from location starting at offset. length<=0
// means "read to EOF from offset", per tablekernel's StorageHandler contract.
func (s *Storage) ReadBytes(ctx context.Context, location string, offset, length int64) ([]byte, error) {
	if bucket, key, ok := splitS3URI(location); ok {
		return s.readS3(ctx, bucket, key, offset, length)
	}
	return s.readLocal(location, offset, length)
}

func (s *Storage) readLocal(location string, offset, length int64) ([]byte, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, tablekernel.NewInternalError("failed to open file", err).WithPath(location)
	}
	defer f.Close()
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, tablekernel.NewInternalError("failed to seek file", err).WithPath(location)
		}
	}
	if length <= 0 {
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, tablekernel.NewInternalError("failed to read file", err).WithPath(location)
		}
		return data, nil
	}
	buf := make([]byte, length)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, tablekernel.NewInternalError("failed to read file", err).WithPath(location)
	}
	return buf[:n], nil
}

// putObject writes data to an S3 key through the manager's Uploader, which
// picks single-PUT vs. multipart upload based on size. Callers needing
// overwrite=false semantics check for existence themselves first (see
// json_handler.go); Upload itself always writes.
func (s *Storage) putObject(ctx context.Context, bucket, key string, data []byte) error {
	if s.uploader == nil {
		return tablekernel.NewGenericError("S3 storage not configured")
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		s.breaker.RecordFailure()
		return err
	}
	s.breaker.RecordSuccess()
	return nil
}

func (s *Storage) readS3(ctx context.Context, bucket, key string, offset, length int64) ([]byte, error) {
	if s.downloader == nil {
		return nil, tablekernel.NewGenericError("S3 storage not configured")
	}
	input := &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}
	if offset > 0 || length > 0 {
		if length > 0 {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		} else {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
		}
	}
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := s.downloader.Download(ctx, buf, input); err != nil {
		s.breaker.RecordFailure()
		return nil, tablekernel.NewInternalError("failed to read S3 object", err).WithPath(bucket + "/" + key)
	}
	s.breaker.RecordSuccess()
	return buf.Bytes(), nil
}
