package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	ID string `json:"id"`
	N  int    `json:"n,omitempty"`
}

func TestDecodeLinesProvenance(t *testing.T) {
	in := `{"id":"a"}

{"id":"b","n":2}
`
	records, err := DecodeLines[sample](strings.NewReader(in))
	if err != nil {
		t.Fatalf("DecodeLines: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if records[0].Line != 1 || records[1].Line != 3 {
		t.Errorf("lines = %d, %d (blank line must count)", records[0].Line, records[1].Line)
	}
	if records[1].Value.N != 2 {
		t.Errorf("value = %+v", records[1].Value)
	}
}

func TestDecodeLinesRejectsUnknownFields(t *testing.T) {
	_, err := DecodeLines[sample](strings.NewReader(`{"id":"a","bogus":1}` + "\n"))
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("unknown field must fail with a line locator, got %v", err)
	}
}

func TestDecodeLinesRejectsTrailingData(t *testing.T) {
	_, err := DecodeLines[sample](strings.NewReader(`{"id":"a"} {"id":"b"}` + "\n"))
	if err == nil {
		t.Error("trailing data after the record must fail")
	}
}

func TestWriteNDJSONAtomicRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	want := []sample{{ID: "a"}, {ID: "b", N: 2}}

	if err := WriteNDJSONAtomic(path, want); err != nil {
		t.Fatalf("WriteNDJSONAtomic: %v", err)
	}
	records, err := ReadNDJSON[sample](path)
	if err != nil {
		t.Fatalf("ReadNDJSON: %v", err)
	}
	if len(records) != 2 || records[1].Value != want[1] {
		t.Errorf("records = %+v", records)
	}

	n, err := CountLines(path)
	if err != nil || n != 2 {
		t.Errorf("CountLines = %d, %v", n, err)
	}
}

func TestWriteFileAtomicLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	if err := WriteFileAtomic(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "data.json" {
		t.Errorf("dir entries = %v", entries)
	}
}

func TestHashFileMatchesHashBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	h1, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if h2 := HashBytes([]byte("payload")); h1 != h2 {
		t.Errorf("HashFile = %s, HashBytes = %s", h1, h2)
	}
}

func TestLoadMissingRequiredFile(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("empty dir must report the missing file, got %v", err)
	}
}

func TestTreeFingerprintTracksContent(t *testing.T) {
	dir := t.TempDir()
	writeMinimalTree(t, dir)

	a, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical trees must fingerprint identically")
	}

	if err := os.WriteFile(filepath.Join(dir, FileCategories), []byte(`categories = ["secretion", "extra"]`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("changed file content must change the fingerprint")
	}
}

func writeMinimalTree(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		FileTaxa:       `{"id":"tx:animalia","rank":"kingdom","display_name":"Animals"}` + "\n",
		FileRules:      `{"part":"part:milk","taxon":"tx:animalia"}` + "\n",
		FileParts:      "[[part]]\nid = \"part:milk\"\nkind = \"animal\"\ncategory = \"secretion\"\ndisplay_name = \"Milk\"\n",
		FileTransforms: "[[transform]]\nid = \"tf:wash\"\ndisplay_name = \"Wash\"\nidentity = false\norder = 1\n",
		FileFamilies:   "",
		FileCategories: `categories = ["secretion"]` + "\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}
