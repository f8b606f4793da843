package aws

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type mockS3 struct {
	objects   map[string][]byte
	types     map[string]string
	putErr    error
	deleteErr error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*in.Key] = data
	m.types[*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	client := newMockS3()
	store := newStore(client, "bucket", "adverts/", "https://bucket.s3.eu-west-1.amazonaws.com/")

	url, err := store.Upload(context.Background(), &core.Image{Data: []byte("GIF89a..."), Filename: "x.gif"})
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if !strings.HasPrefix(url, "https://bucket.s3.eu-west-1.amazonaws.com/adverts/") || !strings.HasSuffix(url, ".gif") {
		t.Errorf("Upload() url = %q", url)
	}
	if len(client.objects) != 1 {
		t.Fatalf("expected one object, got %d", len(client.objects))
	}
	for key, ct := range client.types {
		if !strings.HasPrefix(key, "adverts/") || ct != "image/gif" {
			t.Errorf("object %q stored with content type %q", key, ct)
		}
	}
}

func TestUpload_Failure(t *testing.T) {
	client := newMockS3()
	client.putErr = errors.New("access denied")
	store := newStore(client, "bucket", "", "https://cdn")

	_, err := store.Upload(context.Background(), &core.Image{Data: []byte("x")})
	if !errors.Is(err, core.ErrUpstream) {
		t.Errorf("Upload() error = %v, want ErrUpstream", err)
	}
}

func TestDelete(t *testing.T) {
	client := newMockS3()
	store := newStore(client, "bucket", "p/", "https://cdn")
	ctx := context.Background()

	url, _ := store.Upload(ctx, &core.Image{Data: []byte("x"), ContentType: "image/png"})
	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if len(client.objects) != 0 {
		t.Errorf("Delete() left %d objects", len(client.objects))
	}

	if err := store.Delete(ctx, "https://elsewhere/p/x.png"); err == nil {
		t.Error("Delete() of a foreign url should fail")
	}
}
