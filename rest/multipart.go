package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"github.com/fwojciec/relay"
)

// encodeMultipart writes body as a multipart form: attachments as file1,
// file2, ...; extra fields as strings or JSON; and every history message
// that carries text as message1, message2, ... holding its full JSON.
// Field numbers start at one.
func encodeMultipart(body relay.Body) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for i, f := range body.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file%d"; filename=%q`, i+1, f.Name))
		typ := f.Type
		if typ == "" {
			typ = "application/octet-stream"
		}
		h.Set("Content-Type", typ)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}

	keys := make([]string, 0, len(body.Extra))
	for k := range body.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := fieldValue(body.Extra[k])
		if err != nil {
			return nil, "", fmt.Errorf("field %q: %w", k, err)
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	n := 0
	for _, m := range body.Messages {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, "", err
		}
		n++
		if err := w.WriteField(fmt.Sprintf("message%d", n), string(data)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func fieldValue(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
