package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"csvinsight/domain/analysis"
	"csvinsight/internal"
	"csvinsight/internal/errors"
)

// Messages returned when a model response cannot be used
const (
	MsgNoJSON        = "No se encontró un bloque JSON válido en la respuesta del modelo."
	MsgInvalidJSON   = "Error al procesar la respuesta del modelo."
	MsgInvalidSchema = "El JSON recibido no cumple con la estructura esperada."
)

// jsonBlock matches from the first '{' to the last '}'
var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

var validate = validator.New(validator.WithRequiredStructEnabled())

var responseLogger = internal.DefaultLogger.WithComponent("ResponseParser")

// ParseAnalysis extracts, cleans, decodes and validates a model response.
// Code fences and chatter around the JSON object are ignored; unknown keys
// and out-of-range values are rejected.
func ParseAnalysis(raw string) (*analysis.Result, error) {
	block := jsonBlock.FindString(stripCodeFence(raw))
	if block == "" {
		responseLogger.Warn("no JSON object in response (%d bytes)", len(raw))
		return nil, errors.ValidationError(MsgNoJSON)
	}

	dec := json.NewDecoder(strings.NewReader(block))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		responseLogger.Warn("response JSON did not parse: %v", err)
		return nil, errors.Wrap(errors.ValidationError(MsgInvalidJSON), err.Error())
	}

	cleaned, err := json.Marshal(cleanKeys(generic))
	if err != nil {
		return nil, errors.Wrap(errors.ValidationError(MsgInvalidJSON), err.Error())
	}

	var result analysis.Result
	strict := json.NewDecoder(bytes.NewReader(cleaned))
	strict.DisallowUnknownFields()
	if err := strict.Decode(&result); err != nil {
		responseLogger.Warn("response shape rejected: %v", err)
		return nil, errors.Wrap(errors.ValidationError(MsgInvalidSchema), err.Error())
	}
	if err := validate.Struct(&result); err != nil {
		responseLogger.Warn("response limits violated: %v", err)
		return nil, errors.Wrap(errors.ValidationError(MsgInvalidSchema), err.Error())
	}
	return &result, nil
}

// cleanKeys trims object keys and strips newlines and quote characters
// from them, recursively.
func cleanKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			k = strings.TrimSpace(k)
			k = strings.NewReplacer("\n", "", `"`, "", "'", "").Replace(k)
			out[k] = cleanKeys(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cleanKeys(val)
		}
		return out
	default:
		return v
	}
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimPrefix(content, "json")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// MarshalResult renders a validated result without HTML escaping
func MarshalResult(result *analysis.Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return nil, fmt.Errorf("failed to encode analysis result: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
