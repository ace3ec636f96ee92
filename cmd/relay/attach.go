package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fwojciec/relay"
)

// readAttachments loads files named on the command line. The MIME type
// comes from the extension, falling back to content sniffing.
func readAttachments(paths []string) ([]relay.Attachment, error) {
	files := make([]relay.Attachment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("attach: %w", err)
		}
		typ := mime.TypeByExtension(filepath.Ext(p))
		if typ == "" {
			typ = http.DetectContentType(data)
		}
		files = append(files, relay.Attachment{Name: filepath.Base(p), Type: typ, Data: data})
	}
	return files, nil
}
