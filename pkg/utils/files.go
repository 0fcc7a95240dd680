package utils

import (
	"path/filepath"
	"strings"
)

// SourceExt is the extension of juc source files.
const SourceExt = ".ju"

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// ModuleName derives the label prefix of a source file: its base name without
// the .ju extension. Characters NASM does not accept in a label become '_'.
func ModuleName(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), SourceExt)
	var sb strings.Builder
	for i, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

// AsmPath is where the assembly of src is written under buildDir.
func AsmPath(buildDir, src string) string {
	return filepath.Join(buildDir, ModuleName(src)+".asm")
}

// ObjPath is where the object file of src is written under buildDir.
func ObjPath(buildDir, src string) string {
	return filepath.Join(buildDir, ModuleName(src)+".o")
}
