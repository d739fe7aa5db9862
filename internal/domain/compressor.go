package domain

// Compressor produces a compressed copy of a backup before it is shipped offsite.
type Compressor interface {
	Compress(sourcePath, destPath string) error
	Decompress(sourcePath, destPath string) error
	Extension() string
}
