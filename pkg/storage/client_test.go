package storage

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"simple", "s3://images/ubuntu.iso", "images", "ubuntu.iso", false},
		{"nested key", "s3://images/releases/24.04/ubuntu.iso", "images", "releases/24.04/ubuntu.iso", false},
		{"surrounding space", "  s3://images/a.iso ", "images", "a.iso", false},
		{"missing key", "s3://images", "", "", true},
		{"empty key", "s3://images/", "", "", true},
		{"directory key", "s3://images/releases/", "", "", true},
		{"missing bucket", "s3:///a.iso", "", "", true},
		{"parent bucket", "s3://../a.iso", "", "", true},
		{"local path", "/tmp/a.iso", "", "", true},
		{"other scheme", "https://example.com/a.iso", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseS3URI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || key != tt.wantKey {
				t.Errorf("ParseS3URI(%q) = %q, %q; want %q, %q", tt.uri, bucket, key, tt.wantBucket, tt.wantKey)
			}
		})
	}
}

func TestIsS3URI(t *testing.T) {
	if !IsS3URI("s3://images/a.iso") {
		t.Error("expected s3 uri to be detected")
	}
	if IsS3URI("/home/user/s3://a.iso") || IsS3URI("") {
		t.Error("local paths are not s3 uris")
	}
}

func TestCachePath_StaysInsideCache(t *testing.T) {
	c := &Client{cacheDir: "/var/cache/webbboot"}

	got, err := c.CachePath("s3://images/../../etc/passwd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join("/var/cache/webbboot", "images", "etc", "passwd")
	if got != want {
		t.Errorf("CachePath = %q, want %q", got, want)
	}
}

func TestCopyWithHash(t *testing.T) {
	var dst bytes.Buffer
	sum, size, err := copyWithHash(&dst, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 5 || dst.String() != "hello" {
		t.Errorf("copied %d bytes %q", size, dst.String())
	}
	if sum != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("unexpected checksum %s", sum)
	}
}
