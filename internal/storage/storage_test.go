package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataURL(t *testing.T) {
	data, ct, err := DecodeDataURL("data:image/jpeg;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, "image/jpeg", ct)

	data, ct, err = DecodeDataURL("data:;base64,aGVsbG8")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, DefaultContentType, ct)

	_, _, err = DecodeDataURL("")
	assert.ErrorIs(t, err, ErrMissingDataURL)

	for _, bad := range []string{
		"not a data url",
		"data:image/png;base64",
		"data:text/plain,hello",
		"data:image/png;base64,!!!",
		"data:image/png;base64,",
	} {
		_, _, err := DecodeDataURL(bad)
		assert.ErrorIs(t, err, ErrInvalidDataURL, bad)
	}
}

func TestObjectKeyFormat(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	key, err := ObjectKey(now)
	require.NoError(t, err)
	assert.Regexp(t, `^1700000000123-[0-9a-z]{11}\.png$`, key)
}

func TestNewS3UploaderRequiresCredentials(t *testing.T) {
	_, err := NewS3Uploader(Options{Bucket: "b"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	u, err := NewS3Uploader(Options{AccessKeyID: "id", SecretAccessKey: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "https://canvas-uploads.s3.us-east-1.amazonaws.com/a.png", u.PublicURL("a.png"))
}

func TestPublicURL(t *testing.T) {
	endpoint, _ := url.Parse("http://localhost:9000")
	u := newUploader(nil, Options{Bucket: "imgs"}, DefaultRegion, endpoint, true)
	assert.Equal(t, "http://localhost:9000/imgs/a%20b.png", u.PublicURL("a b.png"))

	u = newUploader(nil, Options{PublicURL: "https://cdn.example/canvas/"}, DefaultRegion, endpoint, true)
	assert.Equal(t, "https://cdn.example/canvas/dir/x.png", u.PublicURL("dir/x.png"))
}

type fakeObjects struct {
	puts    []*s3.PutObjectInput
	bodies  [][]byte
	headErr error
	created []string
	putErr  error
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeObjects) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = append(f.created, aws.ToString(in.Bucket))
	return &s3.CreateBucketOutput{}, nil
}

func TestUploadPutsObjectAndReturnsPublicURL(t *testing.T) {
	endpoint, _ := url.Parse("http://minio:9000")
	fake := &fakeObjects{}
	u := newUploader(fake, Options{}, DefaultRegion, endpoint, true)

	got, err := u.Upload(context.Background(), "/123-abc.png", []byte{1, 2, 3}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/canvas-uploads/123-abc.png", got)

	require.Len(t, fake.puts, 1)
	assert.Equal(t, "canvas-uploads", aws.ToString(fake.puts[0].Bucket))
	assert.Equal(t, "123-abc.png", aws.ToString(fake.puts[0].Key))
	assert.Equal(t, "image/png", aws.ToString(fake.puts[0].ContentType))
	assert.Equal(t, []byte{1, 2, 3}, fake.bodies[0])

	fake.putErr = errors.New("boom")
	_, err = u.Upload(context.Background(), "x.png", []byte{1}, "")
	assert.Error(t, err)
}

func TestEnsureBucketCreatesMissingBucket(t *testing.T) {
	endpoint, _ := url.Parse("http://minio:9000")

	fake := &fakeObjects{}
	u := newUploader(fake, Options{}, DefaultRegion, endpoint, true)
	require.NoError(t, u.EnsureBucket(context.Background()))
	assert.Empty(t, fake.created)

	fake.headErr = errors.New("not found")
	require.NoError(t, u.EnsureBucket(context.Background()))
	assert.Equal(t, []string{"canvas-uploads"}, fake.created)
}
