package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ChainID identifies a chain. Internal and external chains sharing the same
// numeric id are distinct.
type ChainID struct {
	ID       uint64
	External bool
}

// ChainOf returns the chain a message is addressed to.
func ChainOf(msg Message) ChainID {
	return ChainID{ID: msg.ChainID(), External: msg.IsExternal()}
}

func (c ChainID) String() string {
	if c.External {
		return fmt.Sprintf("ext:%016x", c.ID)
	}
	return fmt.Sprintf("int:%016x", c.ID)
}

// Priority ranks how costly it is to lose a chain. Higher priorities are
// retained longer under memory pressure.
type Priority int

const (
	PriorityExpendable Priority = iota
	PriorityOperational
	PriorityImportant
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityExpendable:
		return "expendable"
	case PriorityOperational:
		return "operational"
	case PriorityImportant:
		return "important"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParseChainID parses the form produced by ChainID.String.
func ParseChainID(s string) (ChainID, error) {
	var id ChainID
	kind, hex, ok := strings.Cut(s, ":")
	if !ok {
		return id, fmt.Errorf("invalid chain id %q", s)
	}
	switch kind {
	case "ext":
		id.External = true
	case "int":
	default:
		return id, fmt.Errorf("invalid chain kind %q", kind)
	}
	n, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return id, fmt.Errorf("invalid chain number %q: %w", hex, err)
	}
	id.ID = n
	return id, nil
}
