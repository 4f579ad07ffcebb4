/*
Copyright 2026 The Ledger Offload Engine Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package s3store implements offload.ObjectStore on top of Amazon S3
// (or an S3-compatible endpoint), using the raw aws-sdk-go-v2
// multipart calls rather than the s3manager high-level uploader so
// the offloader keeps explicit control of per-part sequencing.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ledgerbroker/offload"
)

// maxDeleteBatch is the maximum number of keys the S3 DeleteObjects
// call accepts per request.
const maxDeleteBatch = 1000

// Store is an offload.ObjectStore backed by an aws-sdk-go-v2 S3
// client.
type Store struct {
	client *s3.Client

	logOnce sync.Once
	logger  *log.Logger
}

// New builds a Store from cfg. Region or Endpoint must be set
// (checked by offload.Config.Validate before this is called);
// credentials fall back to the default provider chain when
// AccessKey/SecretKey are empty, since some S3-compatible back ends
// require none.
func New(ctx context.Context, cfg offload.Config) (*Store, error) {
	var optFns []func(*config.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client}, nil
}

func (s *Store) log() *log.Logger {
	s.logOnce.Do(func() {
		if s.logger == nil {
			s.logger = log.New(os.Stderr, "s3store: ", log.LstdFlags)
		}
	})
	return s.logger
}

func (s *Store) CreateBucket(ctx context.Context, bucket string) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: awssdk.String(bucket)})
	return err
}

func (s *Store) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: awssdk.String(bucket)})
	return err
}

func (s *Store) CreateMultipartUpload(ctx context.Context, bucket, key string, meta map[string]string, contentType string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      awssdk.String(bucket),
		Key:         awssdk.String(key),
		Metadata:    offload.NormalizeMetadataKeys(meta),
		ContentType: awssdk.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return awssdk.ToString(out.UploadId), nil
}

func (s *Store) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, body io.Reader, size int64) (string, error) {
	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        awssdk.String(bucket),
		Key:           awssdk.String(key),
		UploadId:      awssdk.String(uploadID),
		PartNumber:    awssdk.Int32(int32(partNumber)),
		Body:          body,
		ContentLength: awssdk.Int64(size),
	})
	if err != nil {
		return "", err
	}
	return awssdk.ToString(out.ETag), nil
}

func (s *Store) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []offload.UploadedPart) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			PartNumber: awssdk.Int32(int32(p.PartNumber)),
			ETag:       awssdk.String(p.ETag),
		}
	}
	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          awssdk.String(bucket),
		Key:             awssdk.String(key),
		UploadId:        awssdk.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	return err
}

func (s *Store) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   awssdk.String(bucket),
		Key:      awssdk.String(key),
		UploadId: awssdk.String(uploadID),
	})
	return err
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, meta map[string]string, contentType string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        awssdk.String(bucket),
		Key:           awssdk.String(key),
		Body:          body,
		ContentLength: awssdk.Int64(size),
		ContentType:   awssdk.String(contentType),
		Metadata:      offload.NormalizeMetadataKeys(meta),
	})
	return err
}

func (s *Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, offload.ObjectInfo, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awssdk.String(bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		return nil, offload.ObjectInfo{}, err
	}
	return out.Body, offload.ObjectInfo{
		Size:         awssdk.ToInt64(out.ContentLength),
		UserMetadata: offload.NormalizeMetadataKeys(out.Metadata),
	}, nil
}

func (s *Store) GetObjectRange(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awssdk.String(bucket),
		Key:    awssdk.String(key),
		Range:  awssdk.String(rangeHeader),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (s *Store) HeadObject(ctx context.Context, bucket, key string) (offload.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: awssdk.String(bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		return offload.ObjectInfo{}, err
	}
	return offload.ObjectInfo{
		Size:         awssdk.ToInt64(out.ContentLength),
		UserMetadata: offload.NormalizeMetadataKeys(out.Metadata),
	}, nil
}

// batchKeys splits keys into groups of at most max, preserving order.
func batchKeys(keys []string, max int) [][]string {
	var batches [][]string
	for len(keys) != 0 {
		n := len(keys)
		if n > max {
			n = max
		}
		batches = append(batches, keys[:n])
		keys = keys[n:]
	}
	return batches
}

// DeleteObjects issues batched S3 DeleteObjects calls and aggregates
// both call-level and per-key errors so one bad key in a batch
// doesn't mask the rest.
func (s *Store) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	var errs []error
	for _, batch := range batchKeys(keys, maxDeleteBatch) {
		objs := make([]types.ObjectIdentifier, len(batch))
		for i, k := range batch {
			objs[i] = types.ObjectIdentifier{Key: awssdk.String(k)}
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: awssdk.String(bucket),
			Delete: &types.Delete{Objects: objs},
		})
		if err != nil {
			s.log().Printf("DeleteObjects batch of %d keys in %s: %v", len(batch), bucket, err)
			errs = append(errs, err)
		} else {
			for _, e := range out.Errors {
				errs = append(errs, fmt.Errorf("%s: %s: %s", awssdk.ToString(e.Key), awssdk.ToString(e.Code), awssdk.ToString(e.Message)))
			}
		}
	}
	return errors.Join(errs...)
}
