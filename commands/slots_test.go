package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"seess/store"
)

func TestListSlots(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "slots.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for key, value := range map[string]string{"p/css": `"abc"`, "p/html": `""`, "a/css": `"x"`} {
		if err := db.Save(key, value); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	if err := listSlots(db, &out); err != nil {
		t.Fatal(err)
	}
	want := "a/css\t3\np/css\t5\np/html\t2\n"
	if out.String() != want {
		t.Errorf("listSlots() = %q, want %q", out.String(), want)
	}
}
