package graph

import (
	"time"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/types"
)

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func strPtrOrNil(s *string) any {
	return strOrNil(s)
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func uuidPtrOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func relevanceOrNil(r *types.Relevance) any {
	if r == nil {
		return nil
	}
	return string(*r)
}

func channelOrNil(c *types.ChannelType) any {
	if c == nil {
		return nil
	}
	return string(*c)
}
