// Package export implements the final step of a successful pairing: the
// session's credential file is uploaded to blob storage under a
// randomized name, a recovery token is derived from the resulting URL,
// and the paired account is notified with the token and a confirmation
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gocloud.dev/blob"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/hansbyte/pairgate/internal/client"
	"github.com/hansbyte/pairgate/pkg/log"
)

type (
	// Uploader stores a credential blob and returns its public URL
	Uploader interface {
		Upload(ctx context.Context, key string, r io.Reader) (string, error)
	}

	// MessageSender delivers text messages to a protocol address. The
	// session's own connected client satisfies it
	MessageSender interface {
		SendText(ctx context.Context, to client.JID, body string) error
	}

	// Exporter uploads credential files and notifies the paired account
	Exporter struct {
		uploader    Uploader
		logger      *slog.Logger
		baseURL     string
		tokenPrefix string
	}

	// BucketUploader implements Uploader over a gocloud.dev bucket,
	// supporting S3, GCS, Azure Blob Storage, and local directories
	BucketUploader struct {
		bucket  *blob.Bucket
		baseURL string
	}
)

var (
	ErrUploaderRequired = errors.New("uploader is required")
	ErrUploadFailed     = errors.New("credential upload failed")
	ErrNotifyFailed     = errors.New("notification failed")
)

var _ Uploader = (*BucketUploader)(nil)

// confirmationText follows the token message. The token message stays
// machine-parseable on its own; this one is for the person reading it
const confirmationText = "Your session has been exported.\n\n" +
	"Keep the HANS-BYTE code above private. Anyone holding it can " +
	"restore this session elsewhere.\n\n" +
	"Thank you for using HANS-BYTE."

// New creates an Exporter that derives tokens relative to baseURL and
// prefixes token messages with tokenPrefix
func New(
	uploader Uploader, baseURL, tokenPrefix string, logger *slog.Logger,
) (*Exporter, error) {
	if uploader == nil {
		return nil, ErrUploaderRequired
	}
	return &Exporter{
		uploader:    uploader,
		logger:      logger,
		baseURL:     normalizeBaseURL(baseURL),
		tokenPrefix: tokenPrefix,
	}, nil
}

// Run uploads the credential file under a fresh random name, derives
// the session token, and sends the token and confirmation messages to
// the paired account. The first failure aborts; nothing is sent twice
func (e *Exporter) Run(
	ctx context.Context, sender MessageSender, credsPath string, to client.JID,
) (string, error) {
	f, err := os.Open(credsPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	key := RandomName()
	url, err := e.uploader.Upload(ctx, key, f)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	token := e.Token(url)
	if err := sender.SendText(ctx, to, e.tokenPrefix+token); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotifyFailed, err)
	}
	if err := sender.SendText(ctx, to, confirmationText); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotifyFailed, err)
	}

	e.logger.Info("session credentials exported",
		log.Key(key), log.TokenLen(token))
	return token, nil
}

// Token strips the public base URL from an upload URL, producing the
// compact form sent to the user
func (e *Exporter) Token(url string) string {
	return strings.TrimPrefix(url, e.baseURL)
}

// URL reconstructs the public URL a token was derived from
func (e *Exporter) URL(token string) string {
	return e.baseURL + token
}

// OpenBucket opens the bucket at bucketURL and returns an Uploader whose
// public URLs are rooted at baseURL
func OpenBucket(
	ctx context.Context, bucketURL, baseURL string,
) (*BucketUploader, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &BucketUploader{
		bucket:  bucket,
		baseURL: normalizeBaseURL(baseURL),
	}, nil
}

// Upload streams r into the bucket under key and returns the public URL
func (u *BucketUploader) Upload(
	ctx context.Context, key string, r io.Reader,
) (string, error) {
	w, err := u.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return u.baseURL + key, nil
}

func (u *BucketUploader) Close() error {
	return u.bucket.Close()
}

func normalizeBaseURL(baseURL string) string {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		return baseURL + "/"
	}
	return baseURL
}
