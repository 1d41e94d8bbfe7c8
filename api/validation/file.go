package validation

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
)

type FileType string

const (
	FileTypePNG  FileType = "png"
	FileTypeJPEG FileType = "jpeg"
	FileTypeGIF  FileType = "gif"
	FileTypePDF  FileType = "pdf"
	FileTypeZIP  FileType = "zip"
	FileTypeGZIP FileType = "gzip"
)

var magicBytes = map[FileType][]byte{
	FileTypePNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	FileTypeJPEG: {0xFF, 0xD8, 0xFF},
	FileTypeGIF:  {0x47, 0x49, 0x46, 0x38},
	FileTypePDF:  {0x25, 0x50, 0x44, 0x46},
	FileTypeZIP:  {0x50, 0x4B, 0x03, 0x04},
	FileTypeGZIP: {0x1F, 0x8B},
}

// CheckUpload rejects uploads that are not plain-text CSV files: wrong
// extension, too large, or content starting with a known binary signature.
// The reader is rewound before returning.
func CheckUpload(filename string, size, maxSize int64, file io.ReadSeeker) error {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return newError(0, filename, ErrNotCSV, "only CSV files are allowed")
	}
	if maxSize > 0 && size > maxSize {
		return newError(0, filename, ErrFileTooLarge, "file size %d exceeds limit of %d bytes", size, maxSize)
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if fileType, ok := detectBinary(buffer[:n]); ok {
		return newError(0, filename, ErrNotCSV, "file content looks like %s, expected CSV text", fileType)
	}

	return nil
}

func detectBinary(head []byte) (FileType, bool) {
	for fileType, signature := range magicBytes {
		if bytes.HasPrefix(head, signature) {
			return fileType, true
		}
	}
	if bytes.IndexByte(head, 0x00) >= 0 {
		return "binary data", true
	}
	return "", false
}
