package blob

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestKeyDropsTraversal(t *testing.T) {
	cases := []struct {
		parts []string
		want  string
	}{
		{parts: []string{"documents", "12", "v1", "orig.txt"}, want: "documents/12/v1/orig.txt"},
		{parts: []string{"documents", "../../etc/passwd"}, want: "documents/etc/passwd"},
		{parts: []string{"a\\b", " ", "c"}, want: "a/b/c"},
		{parts: []string{"..", "."}, want: ""},
	}
	for _, tc := range cases {
		if got := Key(tc.parts...); got != tc.want {
			t.Fatalf("Key(%q) = %q, want %q", tc.parts, got, tc.want)
		}
	}
}

func TestLocalStorePutAndGet(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	path, err := s.Put(ctx, "documents/1/v1/orig.txt", strings.NewReader("conteúdo"), -1, "text/plain")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if path != filepath.Join(root, "documents", "1", "v1", "orig.txt") {
		t.Fatalf("unexpected path %s", path)
	}

	rc, err := s.Get(ctx, "documents/1/v1/orig.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "conteúdo" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := s.Get(ctx, "documents/404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Put(ctx, "..", strings.NewReader("x"), 1, ""); err == nil {
		t.Fatal("expected empty key to be refused")
	}
}
