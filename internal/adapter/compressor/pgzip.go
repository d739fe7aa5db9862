package compressor

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/klauspost/pgzip"
)

// blockSize is the amount of input each pgzip worker compresses at once.
const blockSize = 1 << 20

// PgzipCompressor writes gzip files using all available cores. Its output
// is a regular gzip stream readable by gunzip.
type PgzipCompressor struct {
	level  int
	blocks int
}

func NewPgzip() *PgzipCompressor {
	return &PgzipCompressor{
		level:  pgzip.BestCompression,
		blocks: runtime.GOMAXPROCS(0),
	}
}

func (g *PgzipCompressor) Extension() string {
	return ".gz"
}

func (g *PgzipCompressor) Compress(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer destFile.Close()

	gzipWriter, err := pgzip.NewWriterLevel(destFile, g.level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if err := gzipWriter.SetConcurrency(blockSize, g.blocks); err != nil {
		return fmt.Errorf("failed to configure gzip writer: %w", err)
	}

	if _, err := io.Copy(gzipWriter, sourceFile); err != nil {
		gzipWriter.Close()
		return fmt.Errorf("failed to compress: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}

	return destFile.Sync()
}

func (g *PgzipCompressor) Decompress(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	gzipReader, err := pgzip.NewReader(sourceFile)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, gzipReader); err != nil {
		return fmt.Errorf("failed to decompress: %w", err)
	}

	return nil
}
