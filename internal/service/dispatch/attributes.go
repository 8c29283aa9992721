package dispatch

import (
	"context"
	"fmt"

	"github.com/zhouzirui/webskill/backend/internal/model/attributes"
)

// AttributesManager stages persistent attributes for one user during a
// single dispatch.
type AttributesManager struct {
	store      attributes.Store
	userID     string
	persistent map[string]any
	loaded     bool
}

func newAttributesManager(store attributes.Store, userID string) *AttributesManager {
	return &AttributesManager{store: store, userID: userID}
}

// GetPersistentAttributes returns the staged attributes, loading them from
// the store on first use.
func (m *AttributesManager) GetPersistentAttributes(ctx context.Context) (map[string]any, error) {
	if m.loaded {
		return m.persistent, nil
	}
	if m.store == nil {
		return nil, attributes.ErrNoStore
	}
	attrs, err := m.store.GetAttributes(ctx, m.userID)
	if err != nil {
		return nil, fmt.Errorf("load persistent attributes: %w", err)
	}
	m.persistent = attrs
	m.loaded = true
	return m.persistent, nil
}

// SetPersistentAttributes replaces the staged attributes. Nothing is written
// until SavePersistentAttributes.
func (m *AttributesManager) SetPersistentAttributes(attrs map[string]any) {
	m.persistent = attrs
	m.loaded = true
}

// SavePersistentAttributes writes the staged attributes and returns once
// the store has acknowledged the write.
func (m *AttributesManager) SavePersistentAttributes(ctx context.Context) error {
	if m.store == nil {
		return attributes.ErrNoStore
	}
	if !m.loaded {
		return nil
	}
	if err := m.store.SaveAttributes(ctx, m.userID, m.persistent); err != nil {
		return fmt.Errorf("save persistent attributes: %w", err)
	}
	return nil
}
