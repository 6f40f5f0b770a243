package browse

import "github.com/caffeinepub/connect-dating/internal/domain/model"

// Cursor is a session's position in the browsable list. Last is the identity most
// recently liked or passed, so the position survives that identity leaving the list.
type Cursor struct {
	Index int             `json:"i"`
	Last  model.Principal `json:"l,omitempty"`
}

// Resolve returns the position of the current candidate in list. A result equal to
// len(list) means the list is exhausted.
func (c Cursor) Resolve(list []model.Principal) int {
	pos := c.Index
	if !c.Last.IsZero() {
		found := false
		for i, p := range list {
			if p == c.Last {
				pos = i + 1
				found = true
				break
			}
		}
		if !found {
			pos = c.Index - 1
		}
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(list) {
		pos = len(list)
	}
	return pos
}

// Advance moves past acted, or past the current candidate when acted is not in list.
func (c Cursor) Advance(list []model.Principal, acted model.Principal) Cursor {
	for i, p := range list {
		if p == acted {
			return Cursor{Index: i + 1, Last: acted}
		}
	}
	pos := c.Resolve(list)
	if pos >= len(list) {
		return Cursor{Index: len(list)}
	}
	return Cursor{Index: pos + 1, Last: list[pos]}
}

func Restart() Cursor {
	return Cursor{}
}
