package bcf

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// gcsReadCloser closes the client along with the object reader, since each
// stream opened from gs:// owns its client.
type gcsReadCloser struct {
	*storage.Reader
	client *storage.Client
}

func (g *gcsReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// splitGoogleStoragePath turns gs://bucket/path/to/object into its bucket
// and object names.
func splitGoogleStoragePath(path string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(path, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%q is not of the form gs://bucket/object", path)
	}
	return parts[0], parts[1], nil
}

func openGoogleStorage(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, object, err := splitGoogleStoragePath(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, pfx.Err(err)
	}

	return &gcsReadCloser{Reader: rc, client: client}, nil
}
