package discord

import (
	"bytes"
	"io"
	"net/http"
	"os"
)

func readFileWithMimeType(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, http.DetectContentType(data), nil
}

func newByteReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
