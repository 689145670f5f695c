package dataset

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pierrec/lz4/v4"
)

var (
	badURIErr = errors.New("s3 uri must look like s3://bucket/key")
)

// S3Config points to an s3 compatible object storage
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

// Open returns reader of a local file or an s3 object,
// decompressed according to the extension (.gz, .zst, .lz4)
func Open(ctx context.Context, uri string, s3 S3Config) (io.ReadCloser, error) {
	var (
		raw io.ReadCloser
		err error
	)
	name := uri
	if strings.HasPrefix(uri, "s3://") {
		raw, name, err = openObject(ctx, uri, s3)
	} else {
		raw, err = os.Open(uri)
	}
	if err != nil {
		return nil, err
	}
	rc, err := decompress(raw, path.Ext(name))
	if err != nil {
		raw.Close()
		return nil, err
	}
	return rc, nil
}

func decompress(raw io.ReadCloser, ext string) (io.ReadCloser, error) {
	switch strings.ToLower(ext) {
	case ".gz":
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, err
		}
		return &multiCloser{Reader: zr, closers: []io.Closer{zr, raw}}, nil
	case ".zst":
		zr, err := zstd.NewReader(raw)
		if err != nil {
			return nil, err
		}
		return &multiCloser{Reader: zr, closers: []io.Closer{closerFunc(func() error {
			zr.Close()
			return nil
		}), raw}}, nil
	case ".lz4":
		return &multiCloser{Reader: lz4.NewReader(raw), closers: []io.Closer{raw}}, nil
	}
	return raw, nil
}

func parseS3URI(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || u.Host == "" || key == "" {
		return "", "", badURIErr
	}
	return u.Host, key, nil
}

func openObject(ctx context.Context, uri string, cfg S3Config) (io.ReadCloser, string, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, "", err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, "", err
	}
	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}
	return obj, key, nil
}

type nopFlusher struct{}

func (nopFlusher) Close() error { return nil }

// Create opens a local file for writing, compressed according to the extension
func Create(name string) (io.WriteCloser, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	var (
		w  io.Writer
		zc io.Closer = nopFlusher{}
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".gz":
		zw := gzip.NewWriter(f)
		w, zc = zw, zw
	case ".zst":
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		w, zc = zw, zw
	case ".lz4":
		zw := lz4.NewWriter(f)
		w, zc = zw, zw
	default:
		w = f
	}
	return &writeCloser{Writer: w, closers: []io.Closer{zc, f}}, nil
}

type writeCloser struct {
	io.Writer
	closers []io.Closer
}

func (wc *writeCloser) Close() error {
	var first error
	for _, c := range wc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
