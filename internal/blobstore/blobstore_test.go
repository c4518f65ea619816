package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	body    []byte
	putErr  error
	headErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts = append(f.puts, in)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func TestS3Upload(t *testing.T) {
	api := &fakeS3{}
	store := &S3{Client: api, Bucket: "spotmytrash", Region: "sa-east-1"}

	err := store.Upload(context.Background(), "photos/1.jpg", bytes.NewReader([]byte("jpeg")), 4, "image/jpeg")
	require.NoError(t, err)
	require.Len(t, api.puts, 1)
	assert.Equal(t, "spotmytrash", *api.puts[0].Bucket)
	assert.Equal(t, "photos/1.jpg", *api.puts[0].Key)
	assert.Equal(t, "image/jpeg", *api.puts[0].ContentType)
	assert.Equal(t, int64(4), *api.puts[0].ContentLength)
	assert.Equal(t, []byte("jpeg"), api.body)
}

func TestS3UploadError(t *testing.T) {
	boom := errors.New("access denied")
	store := &S3{Client: &fakeS3{putErr: boom}, Bucket: "b"}

	err := store.Upload(context.Background(), "photos/1.jpg", bytes.NewReader(nil), 0, "image/jpeg")
	assert.ErrorIs(t, err, boom)
}

func TestS3URL(t *testing.T) {
	store := &S3{Bucket: "spotmytrash", Region: "sa-east-1"}
	url, err := store.URL(context.Background(), "photos/1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://spotmytrash.s3.sa-east-1.amazonaws.com/photos/1.jpg", url)

	store.CloudFrontDomain = "cdn.example.org"
	url, err = store.URL(context.Background(), "/photos/1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/photos/1.jpg", url)
}

func TestS3Ping(t *testing.T) {
	store := &S3{Client: &fakeS3{headErr: errors.New("no such bucket")}, Bucket: "b"}
	assert.Error(t, store.Ping(context.Background()))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory("http://localhost:8080/blobs/")
	ctx := context.Background()

	_, err := store.URL(ctx, "photos/a.png")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Upload(ctx, "photos/a.png", bytes.NewReader([]byte{1, 2}), 2, "image/png"))
	url, err := store.URL(ctx, "photos/a.png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/blobs/photos/a.png", url)

	data, ct, ok := store.Object("photos/a.png")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, data)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, 1, store.Len())
}
