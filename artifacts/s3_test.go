package artifacts

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	data, _ := io.ReadAll(params.Body)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestUploadLogTail(t *testing.T) {
	putter := &fakePutter{}
	uploader := NewS3UploaderWithClient(putter, S3Config{Bucket: "logs", Prefix: "/jarforge/"})

	uri, err := uploader.UploadLogTail(context.Background(), "paper", "1.20.4", "b1", "line 1\nline 2")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if uri != "s3://logs/jarforge/builds/paper/1.20.4/b1.log" {
		t.Fatalf("unexpected uri %s", uri)
	}
	if *putter.input.Bucket != "logs" || putter.body != "line 1\nline 2" {
		t.Fatalf("unexpected put %+v body %q", putter.input, putter.body)
	}
	if putter.input.Metadata["kind"] != "paper" {
		t.Fatalf("unexpected metadata %v", putter.input.Metadata)
	}
}

func TestUploadLogTailKeepsKeySegments(t *testing.T) {
	putter := &fakePutter{}
	uploader := NewS3UploaderWithClient(putter, S3Config{Bucket: "logs"})

	if _, err := uploader.UploadLogTail(context.Background(), "paper", "../1.0/x", "b1", "tail"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got := *putter.input.Key; got != "builds/paper/__1.0_x/b1.log" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestUploadLogTailError(t *testing.T) {
	uploader := NewS3UploaderWithClient(&fakePutter{err: errors.New("denied")}, S3Config{Bucket: "logs"})
	if _, err := uploader.UploadLogTail(context.Background(), "paper", "1.0", "b1", "tail"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewS3UploaderRequiresBucket(t *testing.T) {
	if _, err := NewS3Uploader(context.Background(), S3Config{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
