package harvest

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/use-agent/cfharvest/models"
)

// EncodeResult renders r as 2-space-indented JSON. Cookie names are sorted
// by encoding/json, so equal results always encode to equal bytes.
func EncodeResult(r *models.ExtractionResult) ([]byte, error) {
	if r.Cookies == nil {
		cp := *r
		cp.Cookies = map[string]string{}
		r = &cp
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteResult overwrites path with the encoded result.
func WriteResult(path string, r *models.ExtractionResult) error {
	data, err := EncodeResult(r)
	if err != nil {
		return models.NewExtractError(models.ErrCodeOutput, "failed to encode result", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return models.NewExtractError(models.ErrCodeOutput, "failed to write "+path, err)
	}
	return nil
}
