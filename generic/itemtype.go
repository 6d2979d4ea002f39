/*
itemtype.go - Item type registration and lookup

PURPOSE:
  Provides a registry for domain packages to register their line-item
  types. This enables deserialization from storage/JSON back to concrete
  types while maintaining proper encapsulation.

HOW IT WORKS:
  1. Domain packages define their ItemType implementations
  2. Domain packages register them on init()
  3. Storage and the API use the registry to reconstruct types

USAGE:
  // In quote/types.go
  func init() {
      generic.RegisterItemType(ItemLabor)
      generic.RegisterItemType(ItemPart)
  }

  // In storage
  t := generic.LookupItemType("quote", "labor") // returns quote.ItemLabor

WHY A REGISTRY:
  - Generic package stays domain-agnostic
  - Item type sets are closed sum types, checked at compile time in the
    domain packages, not string soup with ad hoc field presence checks
  - Clean deserialization from strings

SEE ALSO:
  - types.go: ItemType use on LineItem
  - quote/types.go, purchase/types.go: Domain implementations
*/
package generic

import (
	"fmt"
	"sync"
)

// =============================================================================
// ITEM TYPE
// =============================================================================

// ItemType identifies what kind of row a line item is (labor, part, misc).
// This is an interface so domain packages define their own concrete closed
// sets; the generic package has no knowledge of specific item types.
type ItemType interface {
	// ItemTypeID returns the identifier for this item type, e.g. "labor".
	ItemTypeID() string

	// ItemTypeKind returns the document kind this type belongs to.
	ItemTypeKind() string
}

// =============================================================================
// ITEM TYPE REGISTRY
// =============================================================================

var (
	itemTypeRegistry = make(map[string]ItemType)
	itemTypeMu       sync.RWMutex
)

func itemTypeKey(kind, id string) string { return kind + "/" + id }

// RegisterItemType adds an item type to the global registry.
// Call this from domain package init() functions.
func RegisterItemType(t ItemType) {
	itemTypeMu.Lock()
	defer itemTypeMu.Unlock()
	itemTypeRegistry[itemTypeKey(t.ItemTypeKind(), t.ItemTypeID())] = t
}

// LookupItemType finds a registered item type. Returns nil if not found.
func LookupItemType(kind, id string) ItemType {
	itemTypeMu.RLock()
	defer itemTypeMu.RUnlock()
	return itemTypeRegistry[itemTypeKey(kind, id)]
}

// MustLookupItemType finds a registered item type or panics.
// Use in tests or when you're certain the type exists.
func MustLookupItemType(kind, id string) ItemType {
	t := LookupItemType(kind, id)
	if t == nil {
		panic(fmt.Sprintf("item type not registered: %s/%s", kind, id))
	}
	return t
}

// ListItemTypes returns all registered item types for a document kind.
func ListItemTypes(kind string) []ItemType {
	itemTypeMu.RLock()
	defer itemTypeMu.RUnlock()
	var result []ItemType
	for _, t := range itemTypeRegistry {
		if t.ItemTypeKind() == kind {
			result = append(result, t)
		}
	}
	return result
}

// =============================================================================
// STRING ITEM TYPE - For testing and fallback
// =============================================================================

// StringItemType is a simple string-based item type.
// Use only for testing or as a fallback during deserialization when the
// domain package might not be loaded.
type StringItemType struct {
	ID   string
	Kind string
}

func (t StringItemType) ItemTypeID() string   { return t.ID }
func (t StringItemType) ItemTypeKind() string { return t.Kind }

// GetOrCreateItemType looks up a registered type, or falls back to a
// StringItemType carrying the raw identifiers.
func GetOrCreateItemType(kind, id string) ItemType {
	if t := LookupItemType(kind, id); t != nil {
		return t
	}
	return StringItemType{ID: id, Kind: kind}
}
