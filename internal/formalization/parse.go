package formalization

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/todmy/logic-refine/pkg/models"
)

var codeFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// Parse deserializes a generator payload into a Formalization.
//
// It never fails outright: any payload that is not an object with a string
// map "predicates", a string list "premises" and a string "conclusion" yields
// a Formalization with Error set and empty fields.
func Parse(raw string) models.Formalization {
	text := strings.TrimSpace(raw)
	if text == "" {
		return failed("empty response")
	}
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	fields, err := decodeObject(text)
	if err != nil {
		return failed(err.Error())
	}

	var f models.Formalization
	if rawPreds, ok := fields["predicates"]; ok && string(rawPreds) != "null" {
		if err := json.Unmarshal(rawPreds, &f.Predicates); err != nil {
			return failed("predicates must be an object mapping signatures to descriptions")
		}
	}
	if f.Predicates == nil {
		f.Predicates = map[string]string{}
	}

	rawPremises, ok := fields["premises"]
	if !ok {
		return failed("missing premises")
	}
	if err := json.Unmarshal(rawPremises, &f.Premises); err != nil {
		return failed("premises must be a list of formula strings")
	}

	rawConclusion, ok := fields["conclusion"]
	if !ok {
		return failed("missing conclusion")
	}
	if err := json.Unmarshal(rawConclusion, &f.Conclusion); err != nil {
		return failed("conclusion must be a formula string")
	}

	for i := range f.Premises {
		f.Premises[i] = strings.TrimSpace(f.Premises[i])
	}
	f.Conclusion = strings.TrimSpace(f.Conclusion)
	return f
}

func decodeObject(text string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	err := json.Unmarshal([]byte(text), &fields)
	if err == nil && fields != nil {
		return fields, nil
	}

	// surrounding prose: take the outermost braces
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		if err == nil {
			err = fmt.Errorf("not an object")
		}
		return nil, fmt.Errorf("invalid JSON response: %v", err)
	}
	fields = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %v", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("invalid JSON response: not an object")
	}
	return fields, nil
}

func failed(reason string) models.Formalization {
	return models.Formalization{
		Predicates: map[string]string{},
		Premises:   []string{},
		Error:      reason,
	}
}
