// Package protocol validates and decodes intent payloads sent by clients.
// Students travel as colour-name maps, for example {"red": 2, "blue": 1}.
package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/freeeve/archipelago/pkg/archipelago"
)

//go:embed intent.schema.json
var intentSchemaJSON []byte

// ErrInvalidPayload wraps every schema or decoding failure.
var ErrInvalidPayload = errors.New("invalid intent payload")

// intentSchemaURL names the embedded schema. It is absolute so the compiler
// never resolves it against the working directory.
const intentSchemaURL = "https://archipelago.freeeve.dev/schema/intent.schema.json"

var intentSchema = mustCompile(intentSchemaURL, intentSchemaJSON)

func mustCompile(name string, src []byte) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(name, bytes.NewReader(src)); err != nil {
		panic(fmt.Sprintf("protocol: add %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// Students is the wire form of a pool.
type Students map[string]int

// Option is the wire form of archipelago.Option.
type Option struct {
	Color    string   `json:"color,omitempty"`
	Island   *int     `json:"island,omitempty"`
	Students Students `json:"students,omitempty"`
}

// Intent is the wire form of archipelago.Intent. Pointers distinguish an
// absent field from zero.
type Intent struct {
	Kind      string   `json:"kind"`
	Card      *int     `json:"card,omitempty"`
	Students  Students `json:"students,omitempty"`
	Island    *int     `json:"island,omitempty"`
	Character *int     `json:"character,omitempty"`
	Cloud     *int     `json:"cloud,omitempty"`
	Option    *Option  `json:"option,omitempty"`
}

// Validate checks a raw payload against the intent schema.
func Validate(raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := intentSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// Decode validates a raw payload and converts it to an engine intent.
func Decode(raw []byte) (archipelago.Intent, error) {
	if err := Validate(raw); err != nil {
		return archipelago.Intent{}, err
	}
	var w Intent
	if err := json.Unmarshal(raw, &w); err != nil {
		return archipelago.Intent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return w.toEngine()
}

func (w Intent) toEngine() (archipelago.Intent, error) {
	in := archipelago.Intent{
		Kind:      archipelago.IntentKind(w.Kind),
		Card:      deref(w.Card),
		Island:    deref(w.Island),
		Character: deref(w.Character),
		Cloud:     deref(w.Cloud),
	}
	var err error
	if in.Students, err = w.Students.pool(); err != nil {
		return in, err
	}
	if w.Option != nil {
		in.Option.Island = deref(w.Option.Island)
		if in.Option.Students, err = w.Option.Students.pool(); err != nil {
			return in, err
		}
		if w.Option.Color != "" {
			c, ok := archipelago.ParseColor(w.Option.Color)
			if !ok {
				return in, fmt.Errorf("%w: unknown colour %q", ErrInvalidPayload, w.Option.Color)
			}
			in.Option.Color = c
		}
	}
	return in, nil
}

func (s Students) pool() (archipelago.Pool, error) {
	var p archipelago.Pool
	for name, n := range s {
		c, ok := archipelago.ParseColor(name)
		if !ok {
			return p, fmt.Errorf("%w: unknown colour %q", ErrInvalidPayload, name)
		}
		p[c] = n
	}
	return p, nil
}

// Encode converts an engine intent to its wire JSON, writing only the fields
// its kind reads.
func Encode(in archipelago.Intent) (json.RawMessage, error) {
	w := Intent{Kind: string(in.Kind)}
	switch in.Kind {
	case archipelago.IntentPlayCard:
		w.Card = &in.Card
	case archipelago.IntentMoveToIsland:
		w.Students = studentsOf(in.Students)
		w.Island = &in.Island
	case archipelago.IntentMoveToDining:
		w.Students = studentsOf(in.Students)
	case archipelago.IntentMoveMarker:
		w.Island = &in.Island
	case archipelago.IntentActivateEffect:
		w.Character = &in.Character
		opt := Option{
			Color:    in.Option.Color.String(),
			Island:   &in.Option.Island,
			Students: studentsOf(in.Option.Students),
		}
		w.Option = &opt
	case archipelago.IntentPickCloud:
		w.Cloud = &in.Cloud
	}
	return json.Marshal(w)
}

func studentsOf(p archipelago.Pool) Students {
	if p.IsEmpty() {
		return nil
	}
	s := make(Students)
	for _, c := range p.Colors() {
		s[c.String()] = p.Get(c)
	}
	return s
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
