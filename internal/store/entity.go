package store

import "fmt"

// Kind identifies a canonical entity table.
type Kind int

const (
	KindSkill Kind = iota + 1
	KindLanguage
	KindMajor
)

func (k Kind) String() string {
	switch k {
	case KindSkill:
		return "skill"
	case KindLanguage:
		return "language"
	case KindMajor:
		return "major"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Table returns the table holding rows of kind k.
func (k Kind) Table() string {
	switch k {
	case KindSkill:
		return "skills"
	case KindLanguage:
		return "languages"
	case KindMajor:
		return "majors"
	default:
		return ""
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k.Table() != ""
}

// Entity is the kind-independent view of a canonical row.
type Entity struct {
	ID   uint   `gorm:"primaryKey"`
	Key  string `gorm:"column:name_key"`
	Name string
}

func (e *Entity) Skill() Skill       { return Skill{ID: e.ID, Key: e.Key, Name: e.Name} }
func (e *Entity) Language() Language { return Language{ID: e.ID, Key: e.Key, Name: e.Name} }
func (e *Entity) Major() Major       { return Major{ID: e.ID, Key: e.Key, Name: e.Name} }
