package model

import (
	"time"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
)

type MatchAction struct {
	User      Principal
	Timestamp time.Time
}

// Participant is an entry of the active participants listing.
type Participant struct {
	Principal Principal
	Status    enums.Status
}
