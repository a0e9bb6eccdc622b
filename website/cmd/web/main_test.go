package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSeedAdminUser(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	ok := write("ok.json", `{"adminUser":{"email":"grower@example.com","password":"pa55word","username":"grower"}}`)
	if err := seedAdminUser(&mockUserModel{}, ok, logger); err != nil {
		t.Errorf("seed: %v", err)
	}

	dupe := write("dupe.json", `{"adminUser":{"email":"dupe@example.com","password":"pa55word"}}`)
	if err := seedAdminUser(&mockUserModel{}, dupe, logger); err == nil {
		t.Error("duplicate admin seeded without error")
	}

	empty := write("empty.json", `{"adminUser":{}}`)
	if err := seedAdminUser(&mockUserModel{}, empty, logger); err == nil {
		t.Error("empty admin seeded without error")
	}

	if err := seedAdminUser(&mockUserModel{}, filepath.Join(dir, "missing.json"), logger); err == nil {
		t.Error("missing seed file accepted")
	}
}
