package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type recordingPutter struct {
	key         string
	contentType string
	body        string
	err         error
}

func (r *recordingPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.key = *params.Key
	r.contentType = *params.ContentType
	data, _ := io.ReadAll(params.Body)
	r.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func TestExportKey(t *testing.T) {
	if got := ExportKey("run1", "cypher"); got != "exports/run1/result.cypher" {
		t.Fatalf("ExportKey() = %q", got)
	}
}

func TestPutFile(t *testing.T) {
	tests := []struct {
		key         string
		contentType string
	}{
		{key: "exports/run1/result.json", contentType: "application/json"},
		{key: "exports/run1/result.cypher", contentType: "text/plain; charset=utf-8"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			p := &recordingPutter{}
			key, err := PutFile(context.Background(), p, "bios", tt.key, []byte("MERGE (n)"))
			if err != nil {
				t.Fatalf("PutFile() error = %v", err)
			}
			if key != tt.key || p.key != tt.key || p.body != "MERGE (n)" {
				t.Fatalf("uploaded %q as %q: %q", key, p.key, p.body)
			}
			if p.contentType != tt.contentType {
				t.Fatalf("content type = %q, want %q", p.contentType, tt.contentType)
			}
		})
	}

	if _, err := PutFile(context.Background(), &recordingPutter{err: errors.New("denied")}, "b", "k.md", nil); err == nil {
		t.Fatal("expected upload error")
	}
}
