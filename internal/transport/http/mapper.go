package http

import (
	"time"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/identity"
	"github.com/vovakirdan/wirebot/internal/store"
)

// transferFromStream reads only the immutable fields of s; the owner may be
// mutating its status and progress concurrently.
func transferFromStream(s *core.Stream) ActiveTransferResponse {
	resp := ActiveTransferResponse{
		ID:         s.ID(),
		Name:       s.Name(),
		Size:       s.Size(),
		StreamType: s.StreamType(),
	}
	if id := s.Identifier(); id != nil {
		resp.Identifier = id.String()
	}
	return resp
}

func transferFromRecord(t *store.Transfer) TransferResponse {
	resp := TransferResponse{
		ID:          t.ID,
		Identifier:  t.Identifier,
		Name:        t.Name,
		Size:        t.Size,
		Transferred: t.Transferred,
		StreamType:  t.StreamType,
		Status:      t.Status,
		Reason:      t.Reason,
	}
	if !t.CreatedAt.IsZero() {
		resp.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func roomNames(rooms []identity.Room) []string {
	names := make([]string, 0, len(rooms))
	for _, r := range rooms {
		names = append(names, r.String())
	}
	return names
}
