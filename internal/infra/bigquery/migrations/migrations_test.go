package migrations

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, 1, "init_schema_migrations"},
		{"0012_add_index.sql", true, 12, "add_index"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := ParseFilename(tt.filename)
			if ok != tt.valid || version != tt.version || name != tt.name {
				t.Errorf("ParseFilename(%q) = (%d, %q, %v), want (%d, %q, %v)",
					tt.filename, version, name, ok, tt.version, tt.name, tt.valid)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);")},
		"0001_first.sql":  {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")},
		"README.md":       {Data: []byte("not a migration")},
	}

	got, err := Load(fsys, "proj", "ds")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d migrations, want 2", len(got))
	}
	if got[0].Version != 1 || got[1].Version != 2 {
		t.Errorf("order = %d, %d", got[0].Version, got[1].Version)
	}
	if !strings.Contains(got[0].SQL, "`proj.ds.a`") {
		t.Errorf("placeholders not replaced: %s", got[0].SQL)
	}

	other, err := Load(fsys, "other", "ds2")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if other[0].Checksum != got[0].Checksum {
		t.Error("checksum should not depend on project or dataset")
	}
	if got[0].Checksum == got[1].Checksum {
		t.Error("different files should have different checksums")
	}
}

func TestLoad_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 2;")},
	}
	if _, err := Load(fsys, "p", "d"); err == nil {
		t.Error("expected an error for a duplicate version")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	all, err := Load(FS(), "proj", "ds")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(all) == 0 || all[0].Name != "init_schema_migrations" {
		t.Fatalf("embedded migrations = %+v", all)
	}
	for _, m := range all {
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("%s still has placeholders", m.Filename)
		}
	}

	pending := Pending(all, map[int]bool{1: true})
	if len(pending) != len(all)-1 || pending[0].Version != all[1].Version {
		t.Errorf("Pending = %+v", pending)
	}
}
