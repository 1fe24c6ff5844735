package pkg

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
)

const maxParamsBodySize = 1 << 20

// ReadParams reads the named fields from a url-encoded form or a JSON object
// body, depending on the request content type. Missing fields are empty.
func ReadParams(r *http.Request, names ...string) (map[string]string, error) {
	params := make(map[string]string, len(names))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body map[string]any
		dec := json.NewDecoder(io.LimitReader(r.Body, maxParamsBodySize))
		if err := dec.Decode(&body); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decode json body: %w", err)
		}
		for _, name := range names {
			// only strings count; false, numbers, objects and arrays read as absent
			v, _ := body[name].(string)
			params[name] = v
		}
		return params, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxParamsBodySize)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	for _, name := range names {
		params[name] = r.PostForm.Get(name)
	}

	return params, nil
}
