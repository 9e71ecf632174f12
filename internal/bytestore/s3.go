package bytestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"drive-go/internal/config"
	"drive-go/internal/drive"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Store keeps blobs as objects in a bucket. S3 has no directories, so a
// folder is a zero-byte marker object whose key ends in "/", and renaming a
// folder copies every object under its prefix.
type S3Store struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ drive.ByteStore = (*S3Store)(nil)

// maxDeleteBatch is the S3 limit on keys per DeleteObjects request.
const maxDeleteBatch = 1000

// NewS3Store creates a store over an existing client.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

// NewS3StoreFromConfig builds an S3 client from the default AWS credential
// chain. DRIVE_S3_ACCESS_KEY_ID and DRIVE_S3_SECRET_ACCESS_KEY override it
// with static credentials, which is how MinIO and other S3-compatible
// endpoints are usually reached.
func NewS3StoreFromConfig(ctx context.Context, cfg config.ByteStoreConfig) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if id, secret := os.Getenv("DRIVE_S3_ACCESS_KEY_ID"), os.Getenv("DRIVE_S3_SECRET_ACCESS_KEY"); id != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})
	return NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

func (s *S3Store) key(p string) string {
	return path.Join(s.prefix, cleanPath(p))
}

func (s *S3Store) dirKey(p string) string {
	return s.key(p) + "/"
}

func (s *S3Store) EnsureDirectory(ctx context.Context, p string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dirKey(p)),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return drive.StorageError("ensure directory", p, err)
	}
	return nil
}

// WriteBlob streams r through the multipart uploader. If the stream turns out
// not to be size bytes long, the uploaded object is removed again.
func (s *S3Store) WriteBlob(ctx context.Context, p string, r io.Reader, size int64) error {
	const op = "write blob"
	counter := &countingReader{r: r}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
		Body:   counter,
	})
	if err != nil {
		return drive.StorageError(op, p, err)
	}
	if counter.n != size {
		_ = s.deleteKeys(ctx, []string{s.key(p)})
		return &drive.Error{Kind: drive.KindValidation, Op: op, Path: p,
			Message: fmt.Sprintf("size mismatch: expected %d bytes, got %d", size, counter.n)}
	}
	return nil
}

func (s *S3Store) ReadBlob(ctx context.Context, p string, w io.Writer) error {
	const op = "read blob"
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return s3Error(op, p, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return drive.StorageError(op, p, fmt.Errorf("failed to read object: %w", err))
	}
	return nil
}

// DeleteBlob reports a missing object as not found; S3 itself would
// silently accept the delete.
func (s *S3Store) DeleteBlob(ctx context.Context, p string) error {
	const op = "delete blob"
	exists, err := s.objectExists(ctx, s.key(p))
	if err != nil {
		return drive.StorageError(op, p, err)
	}
	if !exists {
		return &drive.Error{Kind: drive.KindNotFound, Op: op, Path: p}
	}
	if err := s.deleteKeys(ctx, []string{s.key(p)}); err != nil {
		return drive.StorageError(op, p, err)
	}
	return nil
}

func (s *S3Store) DeleteTree(ctx context.Context, p string) error {
	const op = "delete tree"
	keys, err := s.listKeys(ctx, s.dirKey(p))
	if err != nil {
		return drive.StorageError(op, p, err)
	}
	if err := s.deleteKeys(ctx, keys); err != nil {
		return drive.StorageError(op, p, err)
	}
	return nil
}

// RenameEntry copies then deletes. Objects already under the destination
// are removed first. A folder is renamed object by object, so a failure part
// way leaves both prefixes populated.
func (s *S3Store) RenameEntry(ctx context.Context, oldPath, newPath string) error {
	const op = "rename entry"
	from, to := s.key(oldPath), s.key(newPath)
	if from == to {
		return nil
	}
	if strings.HasPrefix(from, to+"/") {
		return drive.ValidationError(op, "%s lies inside %s", oldPath, newPath)
	}

	isBlob, err := s.objectExists(ctx, from)
	if err != nil {
		return drive.StorageError(op, oldPath, err)
	}
	var keys []string
	if isBlob {
		keys = []string{from}
	} else {
		if keys, err = s.listKeys(ctx, from+"/"); err != nil {
			return drive.StorageError(op, oldPath, err)
		}
		if len(keys) == 0 {
			return &drive.Error{Kind: drive.KindNotFound, Op: op, Path: oldPath}
		}
	}

	if err := s.clearDestination(ctx, to); err != nil {
		return drive.StorageError(op, newPath, err)
	}
	for _, k := range keys {
		if err := s.copyObject(ctx, k, to+strings.TrimPrefix(k, from)); err != nil {
			return drive.StorageError(op, oldPath, err)
		}
	}
	if err := s.deleteKeys(ctx, keys); err != nil {
		return drive.StorageError(op, oldPath, err)
	}
	return nil
}

// clearDestination deletes the object at key and every object below it.
func (s *S3Store) clearDestination(ctx context.Context, key string) error {
	stale, err := s.listKeys(ctx, key+"/")
	if err != nil {
		return err
	}
	exists, err := s.objectExists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		stale = append(stale, key)
	}
	if len(stale) == 0 {
		return nil
	}
	return s.deleteKeys(ctx, stale)
}

// ValidateSetup checks that the bucket exists and is reachable.
func (s *S3Store) ValidateSetup(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Store) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	return false, err
}

func (s *S3Store) copyObject(ctx context.Context, from, to string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + url.PathEscape(from)),
		Key:        aws.String(to),
	})
	if err != nil {
		return fmt.Errorf("copying %s to %s: %w", from, to, err)
	}
	return nil
}

func (s *S3Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *S3Store) deleteKeys(ctx context.Context, keys []string) error {
	for i := 0; i < len(keys); i += maxDeleteBatch {
		end := min(i+maxDeleteBatch, len(keys))
		objects := make([]types.ObjectIdentifier, 0, end-i)
		for _, k := range keys[i:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("deleting objects: %w", err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("deleting %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return nil
}

func s3Error(op, p string, err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &drive.Error{Kind: drive.KindNotFound, Op: op, Path: p, Err: err}
	}
	return drive.StorageError(op, p, err)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
