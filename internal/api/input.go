package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	pendingPrefix    = "pending:"
	maxFormMemory    = 8 << 20
	maxNonFileFields = 1 << 20
)

var (
	errBodyTooLarge     = errors.New("request body too large")
	errUnsupportedMedia = errors.New("unsupported content type")
)

// pendingFile is a received photo that has not been stored yet. ref is the
// placeholder the normalizer sees until the upload succeeds.
type pendingFile struct {
	field  string
	header *multipart.FileHeader
	ref    string
	mime   string
}

type requestInput struct {
	fields map[string]any
	files  []*pendingFile
	form   *multipart.Form
}

func (in *requestInput) cleanup() {
	if in.form != nil {
		in.form.RemoveAll()
	}
}

func (in *requestInput) file(ref string) *pendingFile {
	for _, f := range in.files {
		if f.ref == ref {
			return f
		}
	}
	return nil
}

// readInput decodes a multipart, urlencoded or JSON body. Files are kept
// only for fields isPhoto accepts.
func readInput(c *gin.Context, maxBody int64, isPhoto func(string) bool) (*requestInput, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
	in := &requestInput{fields: map[string]any{}}

	switch c.ContentType() {
	case gin.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, bodyError(err)
		}
		in.form = c.Request.MultipartForm
		addValues(in.fields, in.form.Value)

		names := make([]string, 0, len(in.form.File))
		for name := range in.form.File {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !isPhoto(name) {
				continue
			}
			for _, fh := range in.form.File[name] {
				in.files = append(in.files, &pendingFile{
					field:  name,
					header: fh,
					ref:    fmt.Sprintf("%s%d", pendingPrefix, len(in.files)),
				})
			}
		}

	case gin.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return nil, bodyError(err)
		}
		addValues(in.fields, c.Request.PostForm)

	case gin.MIMEJSON, "":
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNonFileFields+1))
		if err != nil {
			return nil, bodyError(err)
		}
		if len(data) > maxNonFileFields {
			return nil, errBodyTooLarge
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return in, nil
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&in.fields); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		if in.fields == nil {
			in.fields = map[string]any{}
		}

	default:
		return nil, errUnsupportedMedia
	}

	return in, nil
}

func addValues(fields map[string]any, values map[string][]string) {
	for key, vals := range values {
		key = strings.TrimSpace(key)
		switch len(vals) {
		case 0:
		case 1:
			fields[key] = vals[0]
		default:
			fields[key] = vals
		}
	}
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errBodyTooLarge
	}
	return fmt.Errorf("invalid request body: %w", err)
}
