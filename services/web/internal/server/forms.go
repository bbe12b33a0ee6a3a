package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"quoteshare/services/web/internal/app"
)

const maxBodyBytes = 1 << 20

var errBadBody = app.ErrInvalidInput.WithMessage("Invalid request body.")

// formValues is a flat view over a form-encoded or JSON object body.
type formValues map[string]string

func (f formValues) get(key string) string { return f[key] }

func (f formValues) quoteInput() app.QuoteInput {
	return app.QuoteInput{
		Content:     f.get("content"),
		Source:      f.get("source"),
		Author:      f.get("author"),
		Explanation: f.get("explanation"),
	}
}

// readForm accepts application/json objects of string values and any
// form encoding net/http understands.
func readForm(w http.ResponseWriter, r *http.Request) (formValues, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, errBadBody
		}
		out := make(formValues, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				out[k] = val
			case nil:
			default:
				return nil, errBadBody
			}
		}
		return out, nil
	}
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, errBadBody
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, errBadBody
	}
	out := make(formValues, len(r.PostForm))
	for k := range r.PostForm {
		out[k] = r.PostForm.Get(k)
	}
	return out, nil
}
