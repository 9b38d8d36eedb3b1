package storage

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  [][]byte
	deletes []string
	headErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

// multipartFile builds a real multipart upload so the header carries a size
func multipartFile(t *testing.T, name string, data []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	file, header, err := req.FormFile("file")
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })
	return file, header
}

func TestGetContentTypeForImage(t *testing.T) {
	tests := []struct {
		extension string
		expected  string
	}{
		{".jpg", "image/jpeg"},
		{".JPEG", "image/jpeg"},
		{".png", "image/png"},
		{".gif", "image/gif"},
		{".webp", "image/webp"},
		{".svg", "image/svg+xml"},
		{".bmp", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.extension, func(t *testing.T) {
			assert.Equal(t, tt.expected, getContentTypeForImage(tt.extension))
		})
	}
}

func TestUploadImage(t *testing.T) {
	fake := &fakeS3{}
	u := newS3Uploader(fake, "us-east-1", "bucket", "https://cdn.example.com/")
	u.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }

	file, header := multipartFile(t, "Logo.PNG", []byte("png-bytes"))
	res, err := u.UploadImage(context.Background(), file, header, "logos", "user-1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Key, "logos/user-1/"))
	assert.True(t, strings.HasSuffix(res.Key, ".png"))
	assert.Equal(t, "https://cdn.example.com/"+res.Key, res.URL)
	assert.Equal(t, int64(9), res.Size)

	require.Len(t, fake.puts, 1)
	assert.Equal(t, "image/png", aws.ToString(fake.puts[0].ContentType))
	assert.Equal(t, "2026-05-01T00:00:00Z", fake.puts[0].Metadata["upload-timestamp"])
	assert.Equal(t, []byte("png-bytes"), fake.bodies[0])

	assert.Equal(t, res.Key, u.KeyFromURL(res.URL))
	assert.Empty(t, u.KeyFromURL("https://elsewhere.example.com/x.png"))
}

func TestUploadImageRejectsUnsupportedType(t *testing.T) {
	fake := &fakeS3{}
	u := newS3Uploader(fake, "us-east-1", "bucket", "https://cdn.example.com")

	file, header := multipartFile(t, "script.exe", []byte("MZ"))
	_, err := u.UploadImage(context.Background(), file, header, "logos", "user-1")
	assert.ErrorIs(t, err, ErrUnsupportedImage)
	assert.Empty(t, fake.puts)
}

func TestUploadImageRejectsOversize(t *testing.T) {
	fake := &fakeS3{}
	u := newS3Uploader(fake, "us-east-1", "bucket", "https://cdn.example.com")

	file, header := multipartFile(t, "big.jpg", bytes.Repeat([]byte{1}, MaxImageSize+1))
	_, err := u.UploadImage(context.Background(), file, header, "covers", "user-1")
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.Empty(t, fake.puts)
}

func TestUploadBackup(t *testing.T) {
	fake := &fakeS3{}
	u := newS3Uploader(fake, "eu-west-1", "bucket", "https://cdn.example.com")

	res, err := u.UploadBackup(context.Background(), "2026-05-01", "b1", []byte(`{"votes":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "backups/2026-05-01/b1.json", res.Key)
	assert.Equal(t, "application/json", aws.ToString(fake.puts[0].ContentType))
}

func TestDeleteFileAndBucketAccess(t *testing.T) {
	fake := &fakeS3{}
	u := newS3Uploader(fake, "us-east-1", "bucket", "https://cdn.example.com")

	require.NoError(t, u.DeleteFile(context.Background(), "logos/u/x.png"))
	assert.Equal(t, []string{"logos/u/x.png"}, fake.deletes)

	require.NoError(t, u.CheckBucketAccess(context.Background()))
	fake.headErr = assert.AnError
	assert.Error(t, u.CheckBucketAccess(context.Background()))
}
