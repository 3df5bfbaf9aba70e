package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rickchristie/docagent"
	"github.com/rickchristie/docagent/schema"
)

// fencePattern matches a ``` or ```json fence (any case) that ends its line, up to the
// next fence that starts a line. JSON strings cannot hold raw newlines, so backticks
// inside action_input never close the block.
var fencePattern = regexp.MustCompile("(?ms)```[ \t]*(?i:json)?[ \t]*\r?$(.*?)^[ \t]*```")

// actionSchema is the only accepted shape of an action blob.
var actionSchema = schema.MustCompile(schema.ClosedObject(map[string]*schema.Property{
	docagent.FieldAction: schema.String("Name of the tool to call").MinLength(1),
	docagent.FieldActionInput: schema.Union(
		"Input passed to the tool",
		"string", "number", "boolean", "null",
	),
}, docagent.FieldAction, docagent.FieldActionInput))

// nullActions are action names that degenerate model output uses to mean "no tool".
var nullActions = map[string]bool{
	"":     true,
	"none": true,
	"null": true,
}

// ReActJSON parses the ReAct JSON single-action protocol.
//
// ReActJSON is stateless and safe for concurrent use.
type ReActJSON struct {
	repair bool
}

// NewReActJSON creates a parser with JSON repair enabled.
func NewReActJSON() *ReActJSON {
	return &ReActJSON{repair: true}
}

// WithRepair toggles the repair pass for almost-valid JSON blobs.
func (p *ReActJSON) WithRepair(enabled bool) *ReActJSON {
	p.repair = enabled
	return p
}

// FormatInstructions describes the expected output protocol for corrective observations.
func (p *ReActJSON) FormatInstructions() string {
	return "Respond with exactly one action as a single JSON blob inside a ``` fenced " +
		`block, with the keys "action" and "action_input", for example:` + "\n" +
		"```\n{\"action\": \"tool name\", \"action_input\": \"tool input\"}\n```\n" +
		"or, if you know the answer, reply with \"Final Answer: \" followed by the answer."
}

// Parse returns *docagent.Action or *docagent.FinalAnswer.
func (p *ReActJSON) Parse(text string) (docagent.ParseResult, error) {
	if idx := strings.LastIndex(text, docagent.MarkerFinalAnswer); idx >= 0 {
		return &docagent.FinalAnswer{
			Text: CleanAnswer(text[idx+len(docagent.MarkerFinalAnswer):]),
			Log:  text,
		}, nil
	}

	blocks := fencePattern.FindAllStringSubmatch(text, -1)
	if len(blocks) == 0 {
		return nil, docagent.NewMalformedOutputError(text,
			"no fenced action blob and no \""+docagent.MarkerFinalAnswer+"\" marker found")
	}

	var action *docagent.Action
	for _, block := range blocks {
		parsed, err := p.parseBlob(text, block[1])
		if err != nil {
			return nil, err
		}
		if action != nil {
			return nil, docagent.NewMalformedOutputError(text,
				"multiple actions found, only one action is allowed per step")
		}
		action = parsed
	}
	return action, nil
}

// parseBlob decodes and validates the contents of one fenced block.
func (p *ReActJSON) parseBlob(text, blob string) (*docagent.Action, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, docagent.NewMalformedOutputError(text, "empty action blob")
	}

	value, err := decode(blob)
	if err != nil && p.repair {
		value, err = repairObject(blob, err)
	}
	if err != nil {
		return nil, docagent.NewMalformedOutputError(text,
			fmt.Sprintf("action blob is not valid JSON: %v", err))
	}

	if _, isArray := value.([]any); isArray {
		return nil, docagent.NewMalformedOutputError(text,
			"multiple actions found, only one action is allowed per step")
	}
	if err := actionSchema.Validate(value); err != nil {
		return nil, docagent.NewMalformedOutputError(text,
			fmt.Sprintf(`action blob must be an object with exactly the keys "%s" and "%s": %v`,
				docagent.FieldAction, docagent.FieldActionInput, err))
	}

	obj := value.(map[string]any)
	name := strings.TrimSpace(obj[docagent.FieldAction].(string))
	if nullActions[strings.ToLower(name)] {
		return nil, docagent.NewMalformedOutputError(text,
			fmt.Sprintf("%q is not a tool, call a tool or give a final answer", name))
	}

	return &docagent.Action{
		Tool:  name,
		Input: inputString(obj[docagent.FieldActionInput]),
		Log:   text,
	}, nil
}

// repairObject retries decoding after jsonrepair, for blobs that look like one object
// with a syntax slip (trailing commas, single quotes). A repair that changes the shape of
// the blob is not accepted; decodeErr is returned instead.
func repairObject(blob string, decodeErr error) (any, error) {
	if !strings.HasPrefix(blob, "{") || !strings.HasSuffix(blob, "}") {
		return nil, decodeErr
	}
	repaired, err := jsonrepair.JSONRepair(blob)
	if err != nil {
		return nil, decodeErr
	}
	value, err := decode(repaired)
	if err != nil {
		return nil, decodeErr
	}
	if _, isObject := value.(map[string]any); !isObject {
		return nil, decodeErr
	}
	return value, nil
}

// decode parses exactly one JSON value, keeping numbers as their literal text.
func decode(blob string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(blob))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return value, nil
}

// inputString renders a validated action_input as the tool's string input.
func inputString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(x)
		return strings.TrimSpace(buf.String())
	}
}

// CleanAnswer trims whitespace and trailing end-of-sequence tokens from model output.
func CleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasSuffix(s, docagent.EndOfSequence) {
		s = strings.TrimSpace(strings.TrimSuffix(s, docagent.EndOfSequence))
	}
	return s
}

// Compile-time check that ReActJSON implements OutputParser.
var _ docagent.OutputParser = (*ReActJSON)(nil)
