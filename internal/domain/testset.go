package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TestResult is a single parsed measurement.
type TestResult struct {
	TestName    string         `json:"test_name"`
	Value       float64        `json:"value"`
	Unit        string         `json:"unit"`
	NormalRange *NormalRange   `json:"normal_range,omitempty"`
	Status      GlycemicStatus `json:"status,omitempty"`
}

// Validate enforces the per-result invariants: a finite value and a
// well-formed range when one is present.
func (r TestResult) Validate() error {
	if r.TestName == "" {
		return NewValidationError("test_name", "test name is required", nil)
	}
	if !IsFinite(r.Value) {
		return fmt.Errorf("%s: %w", r.TestName, ErrNonFiniteValue)
	}
	if err := r.NormalRange.Validate(); err != nil {
		return fmt.Errorf("%s: %w", r.TestName, err)
	}
	return nil
}

// TestSet maps test names to results and remembers insertion order,
// which is the order tests appear in the report.
type TestSet struct {
	order []string
	items map[string]TestResult
}

// NewTestSet creates an empty set.
func NewTestSet() *TestSet {
	return &TestSet{items: make(map[string]TestResult)}
}

// Add inserts a result. A name that is already present is left untouched and
// Add returns false, so the first occurrence in a report wins.
func (s *TestSet) Add(r TestResult) bool {
	if s.items == nil {
		s.items = make(map[string]TestResult)
	}
	if _, exists := s.items[r.TestName]; exists {
		return false
	}
	s.order = append(s.order, r.TestName)
	s.items[r.TestName] = r
	return true
}

// Get returns the result stored under name.
func (s *TestSet) Get(name string) (TestResult, bool) {
	if s == nil {
		return TestResult{}, false
	}
	r, ok := s.items[name]
	return r, ok
}

// Has reports whether name is present.
func (s *TestSet) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Len returns the number of results.
func (s *TestSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Names returns test names in insertion order.
func (s *TestSet) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Results returns the results in insertion order.
func (s *TestSet) Results() []TestResult {
	if s == nil {
		return nil
	}
	out := make([]TestResult, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.items[name])
	}
	return out
}

// Clone copies the set so the copy can be extended without touching s.
func (s *TestSet) Clone() *TestSet {
	c := NewTestSet()
	for _, r := range s.Results() {
		c.Add(r)
	}
	return c
}

// MarshalJSON encodes the set as a JSON object keyed by test name, preserving order.
func (s *TestSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range s.Results() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.TestName)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object produced by MarshalJSON, keeping key order.
func (s *TestSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("test set: expected object, got %v", tok)
	}

	*s = TestSet{items: make(map[string]TestResult)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("test set: expected string key, got %v", keyTok)
		}
		var r TestResult
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("test set: decoding %q: %w", name, err)
		}
		if r.TestName == "" {
			r.TestName = name
		}
		s.Add(r)
	}
	_, err = dec.Token()
	return err
}
