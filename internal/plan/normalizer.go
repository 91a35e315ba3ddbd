package plan

import (
	"regexp"
	"strings"

	"forgeai/fitness-agent/internal/domain"
)

// Shape is the classification of one raw exercise-like value produced by
// the agent. Every value maps to exactly one shape.
type Shape int

const (
	// ShapeString is a plain non-empty string such as "5 minutes of jogging".
	ShapeString Shape = iota
	// ShapeBlock groups several movements under one heading:
	// {"Block": "Mobility", "Movements": [...], "Details": "..."}.
	ShapeBlock
	// ShapeNamed is an object that already exposes a name-like field.
	ShapeNamed
	// ShapeOpaque is anything else.
	ShapeOpaque
)

func (s Shape) String() string {
	switch s {
	case ShapeString:
		return "string"
	case ShapeBlock:
		return "block"
	case ShapeNamed:
		return "named"
	default:
		return "opaque"
	}
}

const (
	stringExerciseNotes = "Complete as described"
	blockDefaultSets    = "3"
	blockDefaultReps    = "10"
	unnamedExercise     = "Unnamed exercise"
)

var (
	nameKeys     = []string{"name", "Name", "movement", "Movement", "exercise", "Exercise"}
	labelKeys    = []string{"title", "Title", "label", "Label"}
	setsKeys     = []string{"sets", "Sets"}
	repsKeys     = []string{"reps", "Reps"}
	durationKeys = []string{"duration", "Duration"}
	notesKeys    = []string{"notes", "Notes", "instructions", "Instructions", "cues"}
	rpeKeys      = []string{"RPE", "rpe"}

	blockKeys     = []string{"Block", "block"}
	movementsKeys = []string{"Movements", "movements"}
	detailsKeys   = []string{"Details", "details"}

	digitsRe = regexp.MustCompile(`\d+`)
)

// Classify picks the shape of a raw value. Values are expected in the form
// produced by encoding/json decoding into any.
func Classify(v any) Shape {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) != "" {
			return ShapeString
		}
		return ShapeOpaque
	case map[string]any:
		if _, ok := textOf(t, blockKeys...); ok {
			if _, isList := lookup(t, movementsKeys...).([]any); isList {
				return ShapeBlock
			}
		}
		if _, ok := textOf(t, nameKeys...); ok {
			return ShapeNamed
		}
		return ShapeOpaque
	default:
		return ShapeOpaque
	}
}

// NormalizeExercises turns an arbitrary decoded JSON value into a flat list
// of exercises. Order is preserved; blocks expand in place. A value that is
// not a list yields an empty list. It never fails.
func NormalizeExercises(v any) []domain.Exercise {
	items, ok := v.([]any)
	if !ok {
		return []domain.Exercise{}
	}

	out := make([]domain.Exercise, 0, len(items))
	for _, item := range items {
		out = append(out, normalizeItem(item)...)
	}
	return out
}

func normalizeItem(v any) []domain.Exercise {
	switch Classify(v) {
	case ShapeString:
		return []domain.Exercise{fromString(v.(string))}
	case ShapeBlock:
		return fromBlock(v.(map[string]any))
	case ShapeNamed:
		return []domain.Exercise{fromNamed(v.(map[string]any))}
	default:
		return []domain.Exercise{fromOpaque(v)}
	}
}

func fromString(s string) domain.Exercise {
	s = strings.TrimSpace(s)
	ex := domain.Exercise{
		Name:  s,
		Notes: stringExerciseNotes,
	}
	if strings.Contains(strings.ToLower(s), "minute") {
		if digits := digitsRe.FindString(s); digits != "" {
			ex.Duration = digits + " min"
		}
	}
	return ex
}

func fromBlock(block map[string]any) []domain.Exercise {
	movements, _ := lookup(block, movementsKeys...).([]any)

	sets, ok := textOf(block, setsKeys...)
	if !ok {
		sets = blockDefaultSets
	}
	reps, ok := textOf(block, repsKeys...)
	if !ok {
		reps = blockDefaultReps
	}
	notes, ok := textOf(block, detailsKeys...)
	if !ok {
		notes, _ = textOf(block, blockKeys...)
	}

	out := make([]domain.Exercise, 0, len(movements))
	for _, m := range movements {
		if name, isString := m.(string); isString && strings.TrimSpace(name) != "" {
			out = append(out, domain.Exercise{
				Name:  strings.TrimSpace(name),
				Sets:  sets,
				Reps:  reps,
				Notes: notes,
			})
			continue
		}
		// object-shaped movements are already exercises; run them through the
		// regular rules so they keep a name
		out = append(out, normalizeItem(m)...)
	}
	return out
}

func fromNamed(obj map[string]any) domain.Exercise {
	name, _ := textOf(obj, nameKeys...)
	ex := domain.Exercise{Name: name}
	ex.Sets, _ = textOf(obj, setsKeys...)
	ex.Reps, _ = textOf(obj, repsKeys...)
	ex.Duration, _ = textOf(obj, durationKeys...)

	if notes, ok := textOf(obj, notesKeys...); ok {
		ex.Notes = notes
	} else if rpe, ok := textOf(obj, rpeKeys...); ok {
		ex.Notes = "RPE: " + rpe
	}
	return ex
}

// fromOpaque keeps whatever can be salvaged from an unrecognized value.
func fromOpaque(v any) domain.Exercise {
	obj, isObject := v.(map[string]any)
	if !isObject {
		if s, ok := scalarText(v); ok {
			return domain.Exercise{Name: s, Notes: stringExerciseNotes}
		}
		return domain.Exercise{Name: unnamedExercise}
	}

	ex := fromNamed(obj)
	if label, ok := textOf(obj, labelKeys...); ok {
		ex.Name = label
	} else if block, ok := textOf(obj, blockKeys...); ok {
		ex.Name = block
	}
	if ex.Name == "" {
		ex.Name = unnamedExercise
	}
	return ex
}
