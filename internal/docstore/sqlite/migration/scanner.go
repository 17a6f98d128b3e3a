package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Pattern matches: {version}_{description}.sql
var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// FileScanner reads migration files from a filesystem directory.
type FileScanner struct {
	files fs.FS
	dir   string
}

// NewFileScanner returns a scanner over dir inside files.
func NewFileScanner(files fs.FS, dir string) *FileScanner {
	return &FileScanner{files: files, dir: dir}
}

// ScanMigrations returns every migration in the directory ordered by version.
func (s *FileScanner) ScanMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(s.files, s.dir)
	if err != nil {
		return nil, NewMigrationError("", s.dir, "read directory", err)
	}

	var migrations []Migration
	versionMap := make(map[int]string) // version -> filename for duplicate detection

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		migration, err := s.ParseMigrationFile(path.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		version, _ := strconv.Atoi(migration.Version)
		if existingFile, exists := versionMap[version]; exists {
			return nil, NewMigrationError(migration.Version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: version %s found in both %s and %s",
					ErrDuplicateVersion, migration.Version, existingFile, entry.Name()))
		}
		versionMap[version] = entry.Name()

		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		versionI, _ := strconv.Atoi(migrations[i].Version)
		versionJ, _ := strconv.Atoi(migrations[j].Version)
		return versionI < versionJ
	})

	return migrations, nil
}

// ValidateFileName checks if migration file follows naming convention
func ValidateFileName(filename string) error {
	matches := migrationFilePattern.FindStringSubmatch(filename)
	if len(matches) != 3 {
		return fmt.Errorf("%w: filename '%s' does not match pattern '{version}_{description}.sql'",
			ErrInvalidMigrationFile, filename)
	}
	if _, err := strconv.Atoi(matches[1]); err != nil {
		return fmt.Errorf("%w: version '%s' in filename '%s' is not a valid number",
			ErrInvalidVersion, matches[1], filename)
	}
	return nil
}

// ParseMigrationFile reads and parses a single migration file
func (s *FileScanner) ParseMigrationFile(filePath string) (*Migration, error) {
	filename := path.Base(filePath)
	if err := ValidateFileName(filename); err != nil {
		return nil, NewMigrationError("", filePath, "validate filename", err)
	}

	matches := migrationFilePattern.FindStringSubmatch(filename)
	version := matches[1]

	sqlBytes, err := fs.ReadFile(s.files, filePath)
	if err != nil {
		return nil, NewMigrationError(version, filePath, "read file", err)
	}
	sqlContent := string(sqlBytes)

	if len(SplitStatements(sqlContent)) == 0 {
		return nil, NewMigrationError(version, filePath, "validate content",
			fmt.Errorf("%w: no SQL statements found", ErrInvalidMigrationFile))
	}

	// Prefer a "-- Description:" line in the file over the filename.
	description := extractDescription(sqlContent)
	if description == "" {
		description = strings.ReplaceAll(matches[2], "_", " ")
	}

	sum := sha256.Sum256(sqlBytes)
	return &Migration{
		Version:     version,
		Description: description,
		SQL:         sqlContent,
		FilePath:    filePath,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}

func extractDescription(sql string) string {
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "--") {
			continue
		}
		comment := strings.TrimSpace(strings.TrimPrefix(line, "--"))
		if after, ok := strings.CutPrefix(comment, "Description:"); ok {
			return strings.TrimSpace(after)
		}
	}
	return ""
}

// SplitStatements splits SQL content into individual statements, dropping
// comment-only lines. Semicolons inside string literals are not supported.
func SplitStatements(sql string) []string {
	var statements []string
	for _, stmt := range strings.Split(sql, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}
