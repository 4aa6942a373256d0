package roster

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	slicerpdf "github.com/porticus-lab/go-slicer-pdf"
)

func names(es []slicerpdf.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Name
	}
	return out
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		column string
		want   []string
	}{
		{"single column", "name\nHospital A\nHospital B\n", "", []string{"Hospital A", "Hospital B"}},
		{"bom", "\uFEFFname\nHospital A\n", "name", []string{"Hospital A"}},
		{"case-insensitive header", "id,Faci_Name\n1,Hospital A\n2,Clinic C\n", "faci_name", []string{"Hospital A", "Clinic C"}},
		{"blank rows skipped", "name\nHospital A\n\n  \nHospital B\n", "", []string{"Hospital A", "Hospital B"}},
		{"raw value kept", "name\n\"  Hospital  A \"\n", "", []string{"  Hospital  A "}},
		{"quoted comma", "name\n\"Smith, Jones Clinic\"\n", "", []string{"Smith, Jones Clinic"}},
		{"short row", "id,name\n1\n2,Hospital B\n", "", []string{"Hospital B"}},
		{"empty file", "", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input), tt.column)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !reflect.DeepEqual(names(got), tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Errorf("got %q, want %q", names(got), tt.want)
			}
		})
	}
}

func TestParse_MissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("hospital\nA\n"), "name")
	if !errors.Is(err, ErrNoColumn) {
		t.Fatalf("err = %v, want ErrNoColumn", err)
	}
}

func TestFailureList_RoundTrip(t *testing.T) {
	fl := FailureList{Path: filepath.Join(t.TempDir(), "failed.csv")}

	got, err := fl.Load()
	if err != nil || len(got) != 0 {
		t.Fatalf("Load on missing file = %v, %v; want empty", got, err)
	}

	want := []slicerpdf.Entity{{Name: "Hospital Z"}, {Name: "Smith, Jones"}, {Name: `Say "hi"`}}
	if err := fl.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = fl.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load = %v, want %v", got, want)
	}

	if err := fl.Save(nil); err != nil {
		t.Fatalf("Save empty: %v", err)
	}
	if got, _ := fl.Load(); len(got) != 0 {
		t.Errorf("Load after empty save = %v", got)
	}
	data, _ := os.ReadFile(fl.Path)
	if string(data) != "name\n" {
		t.Errorf("empty list file = %q, want header only", data)
	}
}

func TestFailureList_LockPath(t *testing.T) {
	fl := FailureList{Path: "/tmp/failed.csv"}
	if fl.LockPath() != "/tmp/failed.csv.lock" {
		t.Errorf("LockPath = %q", fl.LockPath())
	}
}

func TestMerge(t *testing.T) {
	primary := []slicerpdf.Entity{{Name: "Hospital A"}, {Name: "Hospital  A"}, {Name: "Hospital B"}}
	failures := []slicerpdf.Entity{{Name: "hospital b"}, {Name: "Hospital Z"}, {Name: "Hospital A"}}

	got := names(Merge(true, primary, failures))
	want := []string{"Hospital A", "Hospital B", "Hospital Z"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalized merge = %q, want %q", got, want)
	}

	got = names(Merge(false, primary, failures))
	want = []string{"Hospital A", "Hospital  A", "Hospital B", "hospital b", "Hospital Z"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("raw merge = %q, want %q", got, want)
	}
}

func TestMerge_EmptyKeys(t *testing.T) {
	got := Merge(true, []slicerpdf.Entity{{Name: " "}, {Name: "\u200B"}, {Name: " "}})
	if len(got) != 2 {
		t.Errorf("got %q, want two distinct raw blanks", names(got))
	}
}
