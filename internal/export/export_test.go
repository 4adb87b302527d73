package export_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hansbyte/pairgate/internal/client"
	"github.com/hansbyte/pairgate/internal/export"

	_ "gocloud.dev/blob/memblob"
)

type (
	fakeUploader struct {
		uploaded map[string]string
		err      error
	}

	fakeSender struct {
		sent []string
		to   []client.JID
		err  error
		fail int
	}
)

const testBaseURL = "https://mega.nz/file/"

func (u *fakeUploader) Upload(
	_ context.Context, key string, r io.Reader,
) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if u.uploaded == nil {
		u.uploaded = map[string]string{}
	}
	u.uploaded[key] = string(data)
	return testBaseURL + key, nil
}

func (s *fakeSender) SendText(
	_ context.Context, to client.JID, body string,
) error {
	if s.err != nil && len(s.sent) >= s.fail {
		return s.err
	}
	s.sent = append(s.sent, body)
	s.to = append(s.to, to)
	return nil
}

func writeCreds(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creds.json")
	err := os.WriteFile(path, []byte(`{"registered":true}`), 0o600)
	assert.NoError(t, err)
	return path
}

func testExporter(t *testing.T, u export.Uploader) *export.Exporter {
	t.Helper()
	e, err := export.New(u, testBaseURL, "HANS-BYTE~", slog.Default())
	assert.NoError(t, err)
	return e
}

func TestRunUploadsAndNotifies(t *testing.T) {
	uploader := &fakeUploader{}
	sender := &fakeSender{}
	e := testExporter(t, uploader)
	jid := client.NewJID("15551234567", "s.whatsapp.net")

	token, err := e.Run(
		context.Background(), sender, writeCreds(t), jid,
	)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	// uploaded under the derived token's key with the file contents
	assert.Equal(t, `{"registered":true}`, uploader.uploaded[token])

	// token message first, confirmation second, same recipient
	assert.Len(t, sender.sent, 2)
	assert.Equal(t, "HANS-BYTE~"+token, sender.sent[0])
	assert.Contains(t, sender.sent[1], "exported")
	assert.Equal(t, jid, sender.to[0])
	assert.Equal(t, jid, sender.to[1])
}

func TestRunMissingCredsFile(t *testing.T) {
	e := testExporter(t, &fakeUploader{})
	sender := &fakeSender{}

	_, err := e.Run(
		context.Background(), sender,
		filepath.Join(t.TempDir(), "creds.json"),
		client.NewJID("1", "s.whatsapp.net"),
	)
	assert.Error(t, err)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, sender.sent)
}

func TestRunUploadFailure(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("bucket gone")}
	sender := &fakeSender{}
	e := testExporter(t, uploader)

	_, err := e.Run(
		context.Background(), sender, writeCreds(t),
		client.NewJID("1", "s.whatsapp.net"),
	)
	assert.ErrorIs(t, err, export.ErrUploadFailed)
	assert.Empty(t, sender.sent)
}

func TestRunFirstSendFailureStopsSecond(t *testing.T) {
	sender := &fakeSender{err: errors.New("socket dropped"), fail: 0}
	e := testExporter(t, &fakeUploader{})

	_, err := e.Run(
		context.Background(), sender, writeCreds(t),
		client.NewJID("1", "s.whatsapp.net"),
	)
	assert.ErrorIs(t, err, export.ErrNotifyFailed)
	assert.Empty(t, sender.sent)
}

func TestRunSecondSendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("socket dropped"), fail: 1}
	e := testExporter(t, &fakeUploader{})

	_, err := e.Run(
		context.Background(), sender, writeCreds(t),
		client.NewJID("1", "s.whatsapp.net"),
	)
	assert.ErrorIs(t, err, export.ErrNotifyFailed)
	assert.Len(t, sender.sent, 1)
}

func TestTokenURLRoundTrip(t *testing.T) {
	e := testExporter(t, &fakeUploader{})

	url := testBaseURL + "Ab12Cd3456.json"
	token := e.Token(url)
	assert.Equal(t, "Ab12Cd3456.json", token)
	assert.Equal(t, url, e.URL(token))
}

func TestBaseURLNormalization(t *testing.T) {
	e, err := export.New(
		&fakeUploader{}, "https://mega.nz/file", "", slog.Default(),
	)
	assert.NoError(t, err)
	assert.Equal(t, "x.json", e.Token("https://mega.nz/file/x.json"))
}

func TestNewRequiresUploader(t *testing.T) {
	_, err := export.New(nil, testBaseURL, "", slog.Default())
	assert.ErrorIs(t, err, export.ErrUploaderRequired)
}

func TestBucketUploaderMem(t *testing.T) {
	ctx := context.Background()

	u, err := export.OpenBucket(ctx, "mem://", testBaseURL)
	assert.NoError(t, err)
	defer u.Close()

	url, err := u.Upload(ctx, "abc123.json", strings.NewReader("{}"))
	assert.NoError(t, err)
	assert.Equal(t, testBaseURL+"abc123.json", url)
}

func TestBucketUploaderFileURL(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	u, err := export.OpenBucket(ctx, "file://"+tmpDir, testBaseURL)
	assert.NoError(t, err)
	defer u.Close()

	_, err = u.Upload(ctx, "abc123.json", strings.NewReader(`{"a":1}`))
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tmpDir, "abc123.json"))
	assert.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}
