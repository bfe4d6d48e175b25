package avatars

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Upload(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3Store(fake, "avatars-bucket", "https://cdn.example.com/")

	url, err := store.Upload(context.Background(), "abc-123", pngHeader)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://cdn.example.com/avatars/abc-123.png" {
		t.Errorf("unexpected url %q", url)
	}
	if aws.ToString(fake.input.Bucket) != "avatars-bucket" || aws.ToString(fake.input.Key) != "avatars/abc-123.png" {
		t.Errorf("unexpected input %+v", fake.input)
	}
	if aws.ToString(fake.input.ContentType) != "image/png" {
		t.Errorf("unexpected content type %q", aws.ToString(fake.input.ContentType))
	}
	if string(fake.body) != string(pngHeader) {
		t.Error("body not forwarded")
	}
}

func TestS3Store_UploadError(t *testing.T) {
	store := NewS3Store(&fakeS3{err: errors.New("access denied")}, "b", "https://cdn")
	if _, err := store.Upload(context.Background(), "x", pngHeader); err == nil {
		t.Error("expected upload error")
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantExt string
		wantErr bool
	}{
		{"png", pngHeader, "png", false},
		{"jpeg", []byte("\xff\xd8\xff\xe0\x00\x10JFIF"), "jpg", false},
		{"gif", []byte("GIF89a......"), "gif", false},
		{"text", []byte("hello world"), "", true},
		{"empty", nil, "", true},
		{"too large", append(append([]byte{}, pngHeader...), make([]byte, MaxSize)...), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ext, err := Detect(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Detect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ext != tt.wantExt {
				t.Errorf("ext = %q, want %q", ext, tt.wantExt)
			}
		})
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected error without bucket")
	}
}

func TestNew_PublicBaseURL(t *testing.T) {
	store, err := New(context.Background(), Config{
		Bucket:          "teams",
		Endpoint:        "http://localhost:9000/",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.baseURL != "http://localhost:9000/teams" {
		t.Errorf("unexpected base URL %q", store.baseURL)
	}
}

func TestNop(t *testing.T) {
	if _, err := (Nop{}).Upload(context.Background(), "x", pngHeader); err == nil {
		t.Error("Nop upload must fail")
	}
}
