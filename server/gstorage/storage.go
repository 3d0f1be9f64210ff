// Package gstorage wraps google cloud storage for the sqlite backup job.
package gstorage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

var ErrObjectNotExist = storage.ErrObjectNotExist

const transferTimeout = 50 * time.Second

type GStorage struct {
	storageClient *storage.Client
}

func NewGStorage(credentialsFilePath string) (*GStorage, error) {
	var client *storage.Client
	var err error

	if credentialsFilePath != "" {
		client, err = storage.NewClient(context.Background(), option.WithCredentialsFile(credentialsFilePath))
	} else {
		client, err = storage.NewClient(context.Background())
	}

	if err != nil {
		return nil, errors.Wrap(err, "NewGStorage")
	}

	return &GStorage{storageClient: client}, nil
}

// UploadFile uploads the file at filePath to bucket under prefix, keyed by
// the file's base name. Re-uploads overwrite the previous object.
func (gs *GStorage) UploadFile(ctx context.Context, bucket, prefix, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return errors.Wrap(err, "os.Open")
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	object := objectName(prefix, filePath)
	wc := gs.storageClient.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err = io.Copy(wc, f); err != nil {
		return errors.Wrap(err, "io.Copy")
	}
	if err := wc.Close(); err != nil {
		return errors.Wrap(err, "Writer.Close")
	}

	return nil
}

// DownloadFile fetches bucket/prefix/<base of destFilePath> into
// destFilePath. Returns ErrObjectNotExist when no backup has been uploaded.
func (gs *GStorage) DownloadFile(ctx context.Context, bucket, prefix, destFilePath string) error {
	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	object := objectName(prefix, destFilePath)
	rc, err := gs.storageClient.Bucket(bucket).Object(object).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		return err
	}
	if err != nil {
		return errors.Wrapf(err, "Object(%q).NewReader", object)
	}
	defer rc.Close()

	f, err := os.Create(destFilePath)
	if err != nil {
		return errors.Wrap(err, "os.Create")
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return errors.Wrap(err, "io.Copy")
	}

	return errors.Wrap(f.Close(), "f.Close")
}

func objectName(prefix, filePath string) string {
	name := filepath.Base(filePath)
	if prefix == "" {
		return name
	}

	return prefix + "/" + name
}
