package filter

import (
	"slices"
	"strings"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/graph"
)

// Mode is a visualization perspective selecting which node categories
// participate.
type Mode string

// Visualization modes.
const (
	ModeProject    Mode = "project"
	ModeUser       Mode = "user"
	ModeIndicators Mode = "indicators"
	ModeBeeswarm   Mode = "beeswarm"
)

// DefaultMode is the mode a new session starts in.
const DefaultMode = ModeBeeswarm

// Modes lists every mode.
var Modes = []Mode{ModeProject, ModeUser, ModeIndicators, ModeBeeswarm}

// modeAliases maps localized mode names.
var modeAliases = map[string]Mode{
	"projeto":     ModeProject,
	"usuário":     ModeUser,
	"usuario":     ModeUser,
	"indicadores": ModeIndicators,
}

// ParseMode converts a mode name, or one of its localized aliases, into a Mode.
func ParseMode(s string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if m := Mode(key); m.Valid() {
		return m, nil
	}
	if m, ok := modeAliases[key]; ok {
		return m, nil
	}
	return "", errors.New(errors.ErrCodeInvalidMode, "unknown mode %q", s)
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return slices.Contains(Modes, m)
}

// Categories returns the categories mode m admits. It returns nil for an
// unknown mode.
func (m Mode) Categories() []graph.Category {
	switch m {
	case ModeProject:
		return []graph.Category{
			graph.CategoryProject,
			graph.CategoryMap,
			graph.CategoryDivpoint,
			graph.CategoryQuestion,
			graph.CategoryComment,
			graph.CategoryReply,
			graph.CategoryAgreement,
		}
	case ModeUser:
		return []graph.Category{
			graph.CategoryComment,
			graph.CategoryReply,
			graph.CategoryAgreement,
			graph.CategoryUsers,
			graph.CategoryUser,
		}
	case ModeIndicators:
		return slices.Clone(graph.Categories)
	case ModeBeeswarm:
		return []graph.Category{
			graph.CategoryProject,
			graph.CategoryMap,
			graph.CategoryDivpoint,
			graph.CategoryQuestion,
			graph.CategoryComment,
			graph.CategoryReply,
		}
	default:
		return nil
	}
}

// Allows reports whether mode m admits category c.
func (m Mode) Allows(c graph.Category) bool {
	return slices.Contains(m.Categories(), c)
}

// =============================================================================
// Selection - User-Toggled Categories
// =============================================================================

// Selection is the set of categories the user has toggled on.
type Selection map[graph.Category]struct{}

// AllCategories returns a selection with every category on.
func AllCategories() Selection {
	return NewSelection(graph.Categories...)
}

// NewSelection returns a selection with the given categories on.
func NewSelection(cs ...graph.Category) Selection {
	s := make(Selection, len(cs))
	for _, c := range cs {
		s[c] = struct{}{}
	}
	return s
}

// ParseSelection parses category names. An empty list selects everything.
func ParseSelection(names []string) (Selection, error) {
	if len(names) == 0 {
		return AllCategories(), nil
	}
	s := make(Selection, len(names))
	for _, name := range names {
		c, err := graph.ParseCategory(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		s[c] = struct{}{}
	}
	return s, nil
}

// Has reports whether c is toggled on.
func (s Selection) Has(c graph.Category) bool {
	_, ok := s[c]
	return ok
}

// Toggle flips c and reports its new state.
func (s Selection) Toggle(c graph.Category) bool {
	if s.Has(c) {
		delete(s, c)
		return false
	}
	s[c] = struct{}{}
	return true
}

// Slice returns the selected categories in canonical order.
func (s Selection) Slice() []graph.Category {
	out := make([]graph.Category, 0, len(s))
	for _, c := range graph.Categories {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Clone copies the selection.
func (s Selection) Clone() Selection {
	return NewSelection(s.Slice()...)
}
