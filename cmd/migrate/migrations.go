package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// migration is one numbered pair of up and down scripts
type migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

// loadMigrations reads every NNN_name.up.sql in dir with its matching
// .down.sql, ordered by version
func loadMigrations(dir string) ([]migration, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}
	sort.Strings(files)

	migrations := make([]migration, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".up.sql")
		version := extractVersion(name)
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("migrations %s and %s share version %s", prev, name, version)
		}
		seen[version] = name

		up, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		down, err := os.ReadFile(filepath.Join(dir, name+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("failed to read down script of %s: %w", name, err)
		}
		migrations = append(migrations, migration{Version: version, Name: name, Up: string(up), Down: string(down)})
	}
	return migrations, nil
}

func extractVersion(name string) string {
	version, _, _ := strings.Cut(name, "_")
	return version
}

// pendingUp returns the migrations not yet applied, oldest first
func pendingUp(migrations []migration, applied map[string]bool) []migration {
	var todo []migration
	for _, m := range migrations {
		if !applied[m.Version] {
			todo = append(todo, m)
		}
	}
	return todo
}

// toRollBack returns up to steps applied migrations, newest first
func toRollBack(migrations []migration, applied map[string]bool, steps int) []migration {
	var todo []migration
	for i := len(migrations) - 1; i >= 0 && len(todo) < steps; i-- {
		if applied[migrations[i].Version] {
			todo = append(todo, migrations[i])
		}
	}
	return todo
}
