package domain

import (
	"fmt"
	"strconv"
)

// OwnerKind enumerates the entities a Webpage can belong to.
type OwnerKind string

const (
	OwnerListing OwnerKind = "listing"
	OwnerClient  OwnerKind = "client"
)

// ChunkOwnerWebpage is the only owner kind a Chunk may have.
const ChunkOwnerWebpage = "webpage"

// ParseOwnerKind accepts the singular or plural form of an owner kind.
func ParseOwnerKind(s string) (OwnerKind, error) {
	switch s {
	case "listing", "listings":
		return OwnerListing, nil
	case "client", "clients":
		return OwnerClient, nil
	default:
		return "", fmt.Errorf("unknown owner kind %q (want listing or client)", s)
	}
}

// Owner is a typed reference to the entity owning a Webpage.
type Owner struct {
	Kind OwnerKind
	ID   int64
}

func ListingOwner(id int64) Owner { return Owner{Kind: OwnerListing, ID: id} }

func ClientOwner(id int64) Owner { return Owner{Kind: OwnerClient, ID: id} }

// Validate rejects unknown kinds and unset identifiers.
func (o Owner) Validate() error {
	switch o.Kind {
	case OwnerListing, OwnerClient:
	default:
		return fmt.Errorf("invalid webpage owner kind %q", o.Kind)
	}
	if o.ID <= 0 {
		return fmt.Errorf("invalid %s id %d", o.Kind, o.ID)
	}
	return nil
}

func (o Owner) String() string {
	return string(o.Kind) + ":" + strconv.FormatInt(o.ID, 10)
}

// Scope restricts a similarity search to the chunks of one owner.
// ID takes precedence; otherwise Key is a listing website or a client name.
type Scope struct {
	Kind OwnerKind
	ID   int64
	Key  string
}

func ListingScope(id int64) Scope { return Scope{Kind: OwnerListing, ID: id} }

func ListingURLScope(website string) Scope { return Scope{Kind: OwnerListing, Key: website} }

func ClientScope(id int64) Scope { return Scope{Kind: OwnerClient, ID: id} }

func ClientNameScope(name string) Scope { return Scope{Kind: OwnerClient, Key: name} }

func (s Scope) Validate() error {
	if s.Kind != OwnerListing && s.Kind != OwnerClient {
		return fmt.Errorf("invalid search scope kind %q", s.Kind)
	}
	if s.ID <= 0 && s.Key == "" {
		return fmt.Errorf("search scope for %s needs an id or a key", s.Kind)
	}
	return nil
}

func (s Scope) String() string {
	if s.ID > 0 {
		return string(s.Kind) + ":" + strconv.FormatInt(s.ID, 10)
	}
	return string(s.Kind) + ":" + strconv.Quote(s.Key)
}
