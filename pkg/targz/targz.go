package targz

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Archive writes the named files into a gzipped tarball. Entries are
// stored under their base names, the bundle is flat.
func Archive(output io.Writer, paths []string) error {
	gzipWriter := gzip.NewWriter(output)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, path := range paths {
		if err := archiveFile(tarWriter, path); err != nil {
			return errors.Wrapf(err, "Failed to archive %s", path)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func archiveFile(tarWriter *tar.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)

	if err = tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, file)
	return err
}

// Extract unpacks a gzipped tarball produced by Archive into dir.
func Extract(input io.Reader, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	gzipReader, err := gzip.NewReader(input)
	if err != nil {
		return err
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		info := header.FileInfo()
		target := filepath.Join(dir, filepath.Base(header.Name))
		if info.IsDir() {
			if err = os.MkdirAll(target, info.Mode()); err != nil {
				return err
			}
			continue
		}

		if err = extractFile(tarReader, target, info.Mode()); err != nil {
			return errors.Wrapf(err, "Failed to extract %s", header.Name)
		}
	}

	return nil
}

func extractFile(tarReader *tar.Reader, target string, mode os.FileMode) error {
	file, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err = io.Copy(file, tarReader); err != nil {
		return err
	}
	return file.Close()
}
