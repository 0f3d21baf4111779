// Package storage archives raw feed bodies in S3/MinIO so ingestion runs
// can be replayed without hitting the sources again.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/text/unicode/norm"
)

const (
	feedsRoot   = "feeds"
	bodyName    = "feed.xml"
	metaName    = "metadata.json"
	stampLayout = "2006-01-02T15-04-05.000Z"
)

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "newsapp"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Client wraps the MinIO/S3 client for the raw feed archive.
type Client struct {
	minioClient *minio.Client
	bucket      string
}

// New creates a new S3/MinIO client.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// FeedMetadata describes one archived feed body.
type FeedMetadata struct {
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
}

// FeedObject locates an archived feed.
type FeedObject struct {
	Prefix    string
	Slug      string
	FetchedAt time.Time
}

// Slug turns a source name into a key segment: "Perú 21" becomes "peru-21".
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFD.String(strings.ToLower(name)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "source"
	}
	return slug
}

// FeedPrefix returns the key prefix of a feed fetched from source at fetchedAt.
func FeedPrefix(source string, fetchedAt time.Time) string {
	return path.Join(feedsRoot, Slug(source), fetchedAt.UTC().Format(stampLayout))
}

// parseFeedPrefix reverses FeedPrefix for a "feeds/<slug>/<stamp>/..." key.
func parseFeedPrefix(key string) (FeedObject, bool) {
	parts := strings.Split(key, "/")
	if len(parts) < 3 || parts[0] != feedsRoot {
		return FeedObject{}, false
	}
	at, err := time.Parse(stampLayout, parts[2])
	if err != nil {
		return FeedObject{}, false
	}
	return FeedObject{Prefix: path.Join(parts[:3]...), Slug: parts[1], FetchedAt: at}, true
}

// PutFeed stores a raw feed body and its metadata.
func (c *Client) PutFeed(ctx context.Context, source string, fetchedAt time.Time, body []byte, contentType string) error {
	prefix := FeedPrefix(source, fetchedAt)
	if contentType == "" {
		contentType = "application/xml"
	}

	_, err := c.minioClient.PutObject(ctx, c.bucket, path.Join(prefix, bodyName), bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put feed: %w", err)
	}

	meta := FeedMetadata{Source: source, FetchedAt: fetchedAt.UTC(), ContentType: contentType, Size: len(body)}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = c.minioClient.PutObject(ctx, c.bucket, path.Join(prefix, metaName), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put metadata: %w", err)
	}
	return nil
}

// ListFeeds returns archived feeds fetched at or after since, oldest first.
func (c *Client) ListFeeds(ctx context.Context, since time.Time) ([]FeedObject, error) {
	var feeds []FeedObject

	objectCh := c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    feedsRoot + "/",
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		if path.Base(object.Key) != bodyName {
			continue
		}
		feed, ok := parseFeedPrefix(object.Key)
		if !ok || feed.FetchedAt.Before(since) {
			continue
		}
		feeds = append(feeds, feed)
	}

	sort.Slice(feeds, func(i, j int) bool { return feeds[i].FetchedAt.Before(feeds[j].FetchedAt) })
	return feeds, nil
}

// GetFeed reads an archived feed body and its metadata.
func (c *Client) GetFeed(ctx context.Context, prefix string) ([]byte, *FeedMetadata, error) {
	body, err := c.get(ctx, path.Join(prefix, bodyName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get feed: %w", err)
	}

	data, err := c.get(ctx, path.Join(prefix, metaName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	var meta FeedMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return body, &meta, nil
}

func (c *Client) get(ctx context.Context, objectName string) ([]byte, error) {
	object, err := c.minioClient.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()

	return io.ReadAll(object)
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}
