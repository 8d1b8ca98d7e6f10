// Package registry provides an in-memory non-fungible ownership registry.
//
// It is the reference implementation of the marketplace's Registry
// capability. Assets are grouped into classes; each class has an owner who
// alone may mint into it, a total issuance count and bounded metadata.
package registry

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"

	"github.com/rickgao/escrow-market/internal/model"
)

// MaxMetadata is the maximum size in bytes of class and token metadata.
const MaxMetadata = 1024

// Errors
var (
	ErrTokenNotFound      = errors.New("token not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrNoPermission       = errors.New("no permission")
	ErrTokenExists        = errors.New("token already exists")
	ErrCannotDestroyClass = errors.New("class has issued tokens")
	ErrMetadataTooLarge   = errors.New("metadata exceeds maximum size")
	ErrNoAvailableClassID = errors.New("no available class id")
	ErrNoAvailableTokenID = errors.New("no available token id")
)

// Class describes an asset class.
type Class struct {
	Owner         model.AccountID
	Metadata      []byte
	TotalIssuance uint64
	nextToken     model.TokenID
}

// Token describes a single asset.
type Token struct {
	Owner    model.AccountID
	Metadata []byte
}

// Memory is a thread-safe in-memory registry.
type Memory struct {
	mu        sync.RWMutex
	classes   map[model.ClassID]*Class
	tokens    map[model.AssetID]*Token
	nextClass model.ClassID
}

// NewMemory creates an empty registry.
func NewMemory() *Memory {
	return &Memory{
		classes: make(map[model.ClassID]*Class),
		tokens:  make(map[model.AssetID]*Token),
	}
}

// CreateClass registers a new class owned by owner.
func (m *Memory) CreateClass(owner model.AccountID, metadata []byte) (model.ClassID, error) {
	if len(metadata) > MaxMetadata {
		return 0, ErrMetadataTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if m.nextClass == math.MaxUint64 {
			return 0, ErrNoAvailableClassID
		}
		id := m.nextClass
		m.nextClass++
		// Genesis seeding may have claimed ids out of order.
		if _, taken := m.classes[id]; taken {
			continue
		}
		m.classes[id] = &Class{Owner: owner, Metadata: slices.Clone(metadata)}
		return id, nil
	}
}

// Mint creates a token in class for owner. Only the class owner may mint.
func (m *Memory) Mint(caller, owner model.AccountID, class model.ClassID, metadata []byte) (model.TokenID, error) {
	if len(metadata) > MaxMetadata {
		return 0, ErrMetadataTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.classes[class]
	if !ok {
		return 0, ErrClassNotFound
	}
	if c.Owner != caller {
		return 0, ErrNoPermission
	}

	for {
		if c.nextToken == math.MaxUint64 {
			return 0, ErrNoAvailableTokenID
		}
		id := c.nextToken
		c.nextToken++
		asset := model.AssetID{Class: class, Token: id}
		if _, taken := m.tokens[asset]; taken {
			continue
		}
		m.tokens[asset] = &Token{Owner: owner, Metadata: slices.Clone(metadata)}
		c.TotalIssuance++
		return id, nil
	}
}

// Burn destroys a token held by owner.
func (m *Memory) Burn(owner model.AccountID, asset model.AssetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[asset]
	if !ok {
		return ErrTokenNotFound
	}
	if tok.Owner != owner {
		return ErrNoPermission
	}
	c, ok := m.classes[asset.Class]
	if !ok {
		return ErrClassNotFound
	}

	delete(m.tokens, asset)
	c.TotalIssuance--
	return nil
}

// DestroyClass removes an empty class.
func (m *Memory) DestroyClass(owner model.AccountID, class model.ClassID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.classes[class]
	if !ok {
		return ErrClassNotFound
	}
	if c.Owner != owner {
		return ErrNoPermission
	}
	if c.TotalIssuance != 0 {
		return ErrCannotDestroyClass
	}
	delete(m.classes, class)
	return nil
}

// Transfer moves custody of asset from src to dst.
func (m *Memory) Transfer(_ context.Context, src, dst model.AccountID, asset model.AssetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[asset]
	if !ok {
		return ErrTokenNotFound
	}
	if tok.Owner != src {
		return ErrNoPermission
	}
	tok.Owner = dst
	return nil
}

// IsOwnerOf reports whether account holds asset.
func (m *Memory) IsOwnerOf(_ context.Context, account model.AccountID, asset model.AssetID) (bool, error) {
	owner, ok := m.OwnerOf(asset)
	return ok && owner == account, nil
}

// OwnerOf returns the holder of asset.
func (m *Memory) OwnerOf(asset model.AssetID) (model.AccountID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tok, ok := m.tokens[asset]
	if !ok {
		return model.ZeroAccount, false
	}
	return tok.Owner, true
}

// Class returns a copy of the class record.
func (m *Memory) Class(id model.ClassID) (Class, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.classes[id]
	if !ok {
		return Class{}, false
	}
	cp := *c
	cp.Metadata = slices.Clone(c.Metadata)
	return cp, true
}

// TokensOf returns the assets held by owner, ordered by class then token.
func (m *Memory) TokensOf(owner model.AccountID) []model.AssetID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []model.AssetID
	for asset, tok := range m.tokens {
		if tok.Owner == owner {
			result = append(result, asset)
		}
	}
	slices.SortFunc(result, model.CompareAssets)
	return result
}

// SeedToken places asset with owner during genesis loading. The class is
// created on first use and owned by the first seeded owner.
func (m *Memory) SeedToken(_ context.Context, owner model.AccountID, asset model.AssetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[asset]; exists {
		return ErrTokenExists
	}
	c, ok := m.classes[asset.Class]
	if !ok {
		c = &Class{Owner: owner}
		m.classes[asset.Class] = c
	}
	m.tokens[asset] = &Token{Owner: owner}
	c.TotalIssuance++
	return nil
}
