// =============================================================================
// BC3 Budget Converter - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the converter, including:
//   - Input discovery with doublestar patterns
//   - Reading inputs that may be gzip or zstd compressed
//   - Input archival, optionally compressed
//   - Output file naming
//   - Archive pruning
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to input_archive after a successful conversion
//   - With compression enabled the archived copy gets a .gz or .zst suffix
//   - Failed files remain in their original location
//
// =============================================================================

package utils

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ginjaninja78/bc3-budget-converter/internal/config"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression suffixes recognised on input and written on archives.
const (
	GzipExtension = ".gz"
	ZstdExtension = ".zst"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the converter.
type FileManager struct {
	// InputDir is the directory where input files are placed.
	InputDir string

	// OutputDir is the directory where output files are placed.
	OutputDir string

	// InputArchiveDir is the directory for archived input files.
	InputArchiveDir string

	// OutputArchiveDir is the directory for error logs and summaries.
	OutputArchiveDir string

	// Compression is applied to archived inputs: "none", "gzip" or "zstd".
	Compression string

	// UseTimestampSubdirs creates date-based subdirectories in archives.
	// Example: input_archive/2024/01/15/obra.bc3
	UseTimestampSubdirs bool

	// ArchiveOnSuccess determines whether to archive files after successful processing.
	ArchiveOnSuccess bool
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:            inputDir,
		OutputDir:           outputDir,
		InputArchiveDir:     inputArchiveDir,
		OutputArchiveDir:    outputArchiveDir,
		Compression:         config.CompressionNone,
		UseTimestampSubdirs: false,
		ArchiveOnSuccess:    true,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{
		fm.InputDir,
		fm.OutputDir,
		fm.InputArchiveDir,
		fm.OutputArchiveDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles scans the input directory for files matching any of the
// patterns.
//
// PARAMETERS:
//   - patterns: Doublestar patterns relative to InputDir (e.g., "**/*.bc3").
//               If empty, defaults to "*.bc3".
//
// RETURNS:
//   - Sorted, de-duplicated file paths.
//   - An error if a pattern is malformed or the directory cannot be read.
func (fm *FileManager) DiscoverInputFiles(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"*.bc3"}
	}

	seen := make(map[string]bool)
	var result []string
	for _, pattern := range patterns {
		fullPattern := filepath.Join(fm.InputDir, pattern)
		if !doublestar.ValidatePathPattern(fullPattern) {
			return nil, fmt.Errorf("invalid input pattern %q", pattern)
		}

		matches, err := doublestar.FilepathGlob(fullPattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to scan input directory: %w", err)
		}
		for _, file := range matches {
			if !seen[file] {
				seen[file] = true
				result = append(result, file)
			}
		}
	}

	sort.Strings(result)
	return result, nil
}

// =============================================================================
// READING INPUTS
// =============================================================================

// TrimCompressionExtension returns the path without a trailing .gz or .zst.
func TrimCompressionExtension(path string) string {
	lower := strings.ToLower(path)
	for _, ext := range []string{GzipExtension, ZstdExtension} {
		if strings.HasSuffix(lower, ext) {
			return path[:len(path)-len(ext)]
		}
	}
	return path
}

// ReadFile reads a file, transparently decompressing .gz and .zst files.
func ReadFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, GzipExtension):
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("gzip failed: %w", err)
		}
		defer gzReader.Close()
		return io.ReadAll(gzReader)

	case strings.HasSuffix(lower, ZstdExtension):
		zstdReader, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("zstd failed: %w", err)
		}
		defer zstdReader.Close()
		return io.ReadAll(zstdReader)
	}
	return io.ReadAll(file)
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory, compressing
// it when Compression asks for it. Already compressed inputs are moved as is.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails. The original is left in place on error.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(fm.InputArchiveDir, filePath)
	compression := fm.Compression
	if TrimCompressionExtension(filePath) != filePath {
		compression = config.CompressionNone
	}
	switch compression {
	case config.CompressionGzip:
		archivePath += GzipExtension
	case config.CompressionZstd:
		archivePath += ZstdExtension
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if compression == config.CompressionGzip || compression == config.CompressionZstd {
		if err := compressFile(filePath, archivePath, compression); err != nil {
			return "", fmt.Errorf("failed to compress file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
		return archivePath, nil
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// If rename fails (e.g., cross-device), try copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// getArchivePath constructs the archive path for a file.
func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := time.Now()
		subDir := filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
		)
		return filepath.Join(subDir, fileName)
	}

	return filepath.Join(archiveDir, fileName)
}

func compressFile(src, dst, compression string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	var w io.WriteCloser
	switch compression {
	case config.CompressionGzip:
		w = gzip.NewWriter(out)
	case config.CompressionZstd:
		if w, err = zstd.NewWriter(out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown compression %q", compression)
	}

	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return out.Sync()
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates an output file name.
//
// PARAMETERS:
//   - format: The format string for the file name, without extension.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//               {original}  - Original file name (without extension)
//   - extension: Appended when the name does not already end with it.
//   - params: Extra placeholder values.
//
// EXAMPLE:
//   format: "{original}_{timestamp}", extension ".bc3"
//   params: {"original": "obra"}
//   output: "obra_20240115_143022.bc3"
func GenerateOutputFileName(format, extension string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if extension != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(extension)) {
		result += extension
	}
	return result
}

// OriginalName returns the input file name without directory, compression
// suffix or extension.
func OriginalName(path string) string {
	base := filepath.Base(TrimCompressionExtension(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies src to dst and syncs dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// CleanOldArchives removes archived inputs last modified before now minus
// maxAge. A missing directory removes nothing.
//
// RETURNS:
//   - The number of files removed.
//   - An error naming the first file that could not be inspected or removed.
func CleanOldArchives(archiveDir string, maxAge time.Duration) (int, error) {
	if _, err := os.Stat(archiveDir); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	err := filepath.WalkDir(archiveDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to clean archives: %w", err)
	}
	return removed, nil
}
