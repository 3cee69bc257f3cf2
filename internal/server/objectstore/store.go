// Package objectstore talks to the S3-compatible bucket holding uploaded
// objects. Two backends are provided: aws-sdk-go-v2 (S3Store) and minio-go
// (MinioStore).
package objectstore

import (
	"context"
	"time"
)

// Store is the object storage capability used by the broker.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// PresignGet returns a URL that allows an anonymous GET of key for ttl.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Options carries the connection settings shared by both backends.
type Options struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the AWS endpoint, e.g. "http://127.0.0.1:9000/"
	// for MinIO. Empty means AWS.
	Endpoint string
	Bucket   string
}
