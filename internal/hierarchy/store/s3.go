package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"parishnet/internal/hierarchy/models"
	"parishnet/pkg/platform/sentinel"
)

// S3Config holds construction parameters for the object store backend.
// Credentials fall back to the default AWS chain when left empty.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// S3 stores one JSON object per entity under entities/<kind>/<key>.json and
// an empty marker object per parent link under children/<kind>/<key>/<child>.
// Listing a parent's marker prefix yields its children without a scan.
type S3 struct {
	client *s3.Client
	bucket string

	// fetchLimit bounds concurrent GetObject calls in GetMany.
	fetchLimit int
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3FromClient(client, cfg.Bucket), nil
}

// NewS3FromClient wraps a preconfigured client.
func NewS3FromClient(client *s3.Client, bucket string) *S3 {
	return &S3{client: client, bucket: bucket, fetchLimit: 8}
}

func entityObjectKey(kind models.Kind, key string) string {
	return "entities/" + string(kind) + "/" + key + ".json"
}

func childPrefix(parentKind models.Kind, parentKey string) string {
	return "children/" + string(parentKind) + "/" + parentKey + "/"
}

func (s *S3) Put(ctx context.Context, entity *models.Entity) error {
	payload, err := encodeEntity(entity)
	if err != nil {
		return err
	}
	objKey := entityObjectKey(entity.Kind, entity.Key)
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &objKey,
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("put %s: %w", entity.Kind, err)
	}
	if parentKind, parentKey, ok := entity.ParentRef(); ok {
		marker := childPrefix(parentKind, parentKey) + entity.Key
		if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &s.bucket,
			Key:    &marker,
			Body:   bytes.NewReader(nil),
		}); err != nil {
			return fmt.Errorf("put child marker: %w", err)
		}
	}
	return nil
}

func (s *S3) Get(ctx context.Context, kind models.Kind, key string) (*models.Entity, error) {
	objKey := entityObjectKey(kind, key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &objKey})
	if err != nil {
		if isS3NotFound(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", kind, err)
	}
	return decodeEntity(data)
}

func (s *S3) GetMany(ctx context.Context, kind models.Kind, keys []string) ([]*models.Entity, error) {
	var (
		mu    sync.Mutex
		found = make([]*models.Entity, 0, len(keys))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchLimit)
	for _, key := range keys {
		g.Go(func() error {
			e, err := s.Get(gctx, kind, key)
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			found = append(found, e)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Key < found[j].Key })
	return found, nil
}

func (s *S3) ListChildren(ctx context.Context, parentKind models.Kind, parentKey string) ([]string, error) {
	prefix := childPrefix(parentKind, parentKey)
	keys := []string{}
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list children of %s: %w", parentKind, err)
		}
		for _, obj := range out.Contents {
			child := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if child != "" && !strings.Contains(child, "/") {
				keys = append(keys, child)
			}
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the child marker before the entity object so a crash in
// between leaves a readable entity rather than a dangling marker.
func (s *S3) Delete(ctx context.Context, kind models.Kind, key string) error {
	existing, err := s.Get(ctx, kind, key)
	if err != nil {
		return err
	}
	if parentKind, parentKey, ok := existing.ParentRef(); ok {
		marker := childPrefix(parentKind, parentKey) + key
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &marker}); err != nil {
			return fmt.Errorf("delete child marker: %w", err)
		}
	}
	objKey := entityObjectKey(kind, key)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &objKey}); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
