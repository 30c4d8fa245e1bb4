package dmongo

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// CA bundles
	_ "gocloud.dev/blob/s3blob"   // s3:// CA bundles
)

// LoadCA reads a PEM CA bundle from a local path or a blob URL, ex.
// "s3://rds-downloads/rds-combined-ca-bundle.pem?region=us-east-1".
func LoadCA(ctx context.Context, location string) ([]byte, error) {
	if !strings.Contains(location, "://") {
		b, err := os.ReadFile(location)
		if err != nil {
			return nil, errors.Wrap(err, "read ca file", j.KS("path", location))
		}
		return b, nil
	}

	bucketURL, key, err := splitBlobURL(location)
	if err != nil {
		return nil, err
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, errors.Wrap(err, "open ca bucket", j.KS("url", bucketURL))
	}
	defer bucket.Close()

	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open ca object", j.KS("key", key))
	}
	defer r.Close()

	return io.ReadAll(r)
}

// splitBlobURL splits "scheme://bucket/dir/key?query" into the bucket URL
// "scheme://bucket?query" and the key "dir/key". For file URLs the bucket
// is the directory of the file.
func splitBlobURL(location string) (string, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", errors.Wrap(err, "parse ca url")
	}

	if u.Scheme == "file" {
		dir, key := path.Split(u.Path)
		b := url.URL{Scheme: u.Scheme, Path: dir, RawQuery: u.RawQuery}
		return b.String(), key, nil
	}

	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", errors.New("invalid ca url", j.KS("url", location))
	}
	b := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}
	return b.String(), key, nil
}

// TLSConfig returns a TLS config trusting the CAs in the PEM bundle.
func TLSConfig(pem []byte) (*tls.Config, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("no certificates in ca bundle")
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
