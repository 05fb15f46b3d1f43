package bgen

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// GCSReader streams the variants of a BGEN file stored in Google Cloud
// Storage. The object is read strictly front to back.
type GCSReader struct {
	*VariantReader

	client *storage.Client
	object *storage.Reader
}

// OpenGCS opens a gs://bucket/object URI with application default
// credentials. The caller must Close the returned reader.
func OpenGCS(ctx context.Context, uri string) (*GCSReader, error) {
	bucket, object, err := parseGCSURI(uri)
	if err != nil {
		return nil, pfx.Err(err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, pfx.Err(err)
	}

	return &GCSReader{
		VariantReader: NewVariantReader(bufio.NewReaderSize(r, readBufferSize)),
		client:        client,
		object:        r,
	}, nil
}

func (g *GCSReader) Close() error {
	err := g.object.Close()
	if cerr := g.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// IsGCSPath reports whether path names a Google Cloud Storage object.
func IsGCSPath(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

func parseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSPath(uri) {
		return "", "", fmt.Errorf("%q is not a gs:// URI", uri)
	}

	bucket, object, found := strings.Cut(strings.TrimPrefix(uri, "gs://"), "/")
	if !found || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%q does not name both a bucket and an object", uri)
	}

	return bucket, object, nil
}
