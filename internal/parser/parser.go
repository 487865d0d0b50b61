// Package parser implements the response-parser dispatch of SPEC_FULL.md
// §4.6: given a decoded upstream response body and a discriminator name, it
// extracts non-negative (input_tokens, output_tokens) for usage attribution.
package parser

import (
	"fmt"

	"github.com/tidwall/gjson"

	gateway "github.com/burgonet-eu/gateway/internal"
)

// Func extracts (input_tokens, output_tokens) from a raw JSON response body.
type Func func(body []byte) (inputTokens, outputTokens int64, err error)

var registry = map[string]Func{
	"ollama": parseOllama,
	"openai": parseOpenAI,
}

// Parse dispatches to the parser registered for name. An unrecognized name
// or a malformed payload is a parser failure: zero attribution, wrapped
// ErrParserFailed.
func Parse(name string, body []byte) (inputTokens, outputTokens int64, err error) {
	fn, ok := registry[name]
	if !ok {
		return 0, 0, fmt.Errorf("%w: unknown parser %q", gateway.ErrParserFailed, name)
	}
	inputTokens, outputTokens, err = fn(body)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", gateway.ErrParserFailed, err)
	}
	return inputTokens, outputTokens, nil
}

// parseOllama reads Ollama's native generate/chat response fields:
// prompt_eval_count (input) and eval_count (output).
func parseOllama(body []byte) (int64, int64, error) {
	if !gjson.ValidBytes(body) {
		return 0, 0, fmt.Errorf("invalid json")
	}
	result := gjson.ParseBytes(body)
	input := result.Get("prompt_eval_count")
	output := result.Get("eval_count")
	if !input.Exists() || !output.Exists() {
		return 0, 0, fmt.Errorf("missing prompt_eval_count/eval_count")
	}
	if input.Int() < 0 || output.Int() < 0 {
		return 0, 0, fmt.Errorf("negative token count")
	}
	return input.Int(), output.Int(), nil
}

// parseOpenAI reads the OpenAI-compatible usage object:
// usage.prompt_tokens (input) and usage.completion_tokens (output).
func parseOpenAI(body []byte) (int64, int64, error) {
	if !gjson.ValidBytes(body) {
		return 0, 0, fmt.Errorf("invalid json")
	}
	result := gjson.ParseBytes(body)
	input := result.Get("usage.prompt_tokens")
	output := result.Get("usage.completion_tokens")
	if !input.Exists() || !output.Exists() {
		return 0, 0, fmt.Errorf("missing usage.prompt_tokens/usage.completion_tokens")
	}
	if input.Int() < 0 || output.Int() < 0 {
		return 0, 0, fmt.Errorf("negative token count")
	}
	return input.Int(), output.Int(), nil
}
