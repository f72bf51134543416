package app

import (
	"context"
	"testing"

	"github.com/dvloznov/card-advisor/internal/config"
	"github.com/dvloznov/card-advisor/internal/objectstore"
	"github.com/dvloznov/card-advisor/internal/store/inmemory"
)

func TestOpenStore(t *testing.T) {
	st, err := OpenStore(context.Background(), &config.Config{StoreBackend: config.StoreMemory})
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if _, ok := st.(*inmemory.Store); !ok {
		t.Errorf("OpenStore(memory) = %T", st)
	}

	if _, err := OpenStore(context.Background(), &config.Config{StoreBackend: "mongo"}); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestOpenObjectStore(t *testing.T) {
	dir := t.TempDir()
	objects, err := OpenObjectStore(context.Background(), &config.Config{ObjectStore: config.ObjectLocal, UploadDir: dir})
	if err != nil {
		t.Fatalf("OpenObjectStore failed: %v", err)
	}
	if _, ok := objects.(*objectstore.Local); !ok {
		t.Errorf("OpenObjectStore(local) = %T", objects)
	}

	if _, err := OpenObjectStore(context.Background(), &config.Config{ObjectStore: "ftp"}); err == nil {
		t.Error("expected an error for an unknown object store")
	}
}

func TestServicesClose(t *testing.T) {
	s := &Services{closers: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close on empty services = %v", err)
	}
}
