package storageprovider

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalPutIsAtomic(t *testing.T) {
	ctx := context.Background()
	l := &Local{Root: t.TempDir()}

	w, err := l.Put(ctx, "reports/app.json.lz4")
	if err != nil {
		t.Fatalf("we should be able to open a writer: %v", err)
	}
	if _, err := w.Write([]byte("report")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(l.Root, "reports", "app.json.lz4")); !os.IsNotExist(err) {
		t.Fatalf("object should not exist before close, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := l.Get(ctx, "reports/app.json.lz4")
	if err != nil {
		t.Fatalf("we should be able to read the object: %v", err)
	}
	defer r.Close()
	if r.Size() != int64(len("report")) {
		t.Fatalf("unexpected size %d", r.Size())
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "report" {
		t.Fatalf("unexpected content %q", b)
	}
}

func TestLocalAbort(t *testing.T) {
	ctx := context.Background()
	l := &Local{Root: t.TempDir()}

	w, err := l.Put(ctx, "app.json.lz4")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("partial")); err != nil {
		t.Fatal(err)
	}
	if err := w.(*localWriter).Abort(); err != nil {
		t.Fatalf("we should be able to abort: %v", err)
	}
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("an aborted write should leave nothing behind, found %v", entries)
	}
}

func TestLocalRejectsEscapingNames(t *testing.T) {
	ctx := context.Background()
	l := &Local{Root: t.TempDir()}

	for _, name := range []string{"../outside", "/etc/passwd", ""} {
		if _, err := l.Put(ctx, name); err == nil {
			t.Fatalf("%q: expected an error", name)
		}
		if _, err := l.Get(ctx, name); err == nil {
			t.Fatalf("%q: expected an error", name)
		}
	}
}
