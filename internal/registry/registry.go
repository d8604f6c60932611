package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"drainReversal/internal/chain"
	"drainReversal/internal/events"
	"drainReversal/internal/model"
)

// Implementation names used by the pool proxies.
const (
	CorePoolName  = "IndexPool.sol"
	SigmaPoolName = "SigmaIndexPoolV1.sol"
)

// ID returns the stable identifier of an implementation name.
func ID(name string) common.Hash {
	return crypto.Keccak256Hash([]byte(name))
}

var (
	CorePoolID  = ID(CorePoolName)
	SigmaPoolID = ID(SigmaPoolName)
)

// Registry maps stable identifiers to the address of the active
// implementation. Implementations are registered by address once; switching
// an identifier is a single pointer update.
type Registry[T any] struct {
	address    common.Address
	controller common.Address
	logger     *zap.Logger

	mu      sync.RWMutex
	code    map[common.Address]T
	current map[common.Hash]common.Address
}

// New creates a registry living at address and administered by controller.
func New[T any](address, controller common.Address, logger *zap.Logger) *Registry[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry[T]{
		address:    address,
		controller: controller,
		logger:     logger,
		code:       make(map[common.Address]T),
		current:    make(map[common.Hash]common.Address),
	}
}

// Address returns the registry address.
func (r *Registry[T]) Address() common.Address {
	return r.address
}

// Controller returns the account allowed to switch implementations.
func (r *Registry[T]) Controller() common.Address {
	return r.controller
}

// Register deploys impl at addr. Panics if addr is already taken.
func (r *Registry[T]) Register(addr common.Address, impl T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exist := r.code[addr]; exist {
		panic(fmt.Sprintf("%s already registered", addr.Hex()))
	}
	r.code[addr] = impl
}

// Bind points id at addr without access control. It is used when building a
// deployment and when loading persisted state.
func (r *Registry[T]) Bind(id common.Hash, addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.code[addr]; !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownImplementation, addr.Hex())
	}
	r.current[id] = addr
	return nil
}

// SetImplementation points id at addr. Only the controller may call it.
func (r *Registry[T]) SetImplementation(c *chain.Call, id common.Hash, addr common.Address) error {
	if c.Caller != r.controller {
		return fmt.Errorf("%w: %s is not the registry controller", model.ErrUnauthorized, c.Caller.Hex())
	}

	r.mu.Lock()
	if _, ok := r.code[addr]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", model.ErrUnknownImplementation, addr.Hex())
	}
	prev, had := r.current[id]
	r.current[id] = addr
	r.mu.Unlock()

	c.Journal(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if had {
			r.current[id] = prev
		} else {
			delete(r.current, id)
		}
	})

	r.logger.Debug("implementation set",
		zap.String("id", id.Hex()),
		zap.String("implementation", addr.Hex()),
	)
	return c.Emit(events.ImplementationSet(r.address, id, addr))
}

// Implementation returns the address currently bound to id.
func (r *Registry[T]) Implementation(id common.Hash) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.current[id]
	return addr, ok
}

// Resolve returns the implementation currently bound to id.
func (r *Registry[T]) Resolve(id common.Hash) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero T
	addr, ok := r.current[id]
	if !ok {
		return zero, fmt.Errorf("%w: no implementation for %s", model.ErrUnknownImplementation, id.Hex())
	}
	impl, ok := r.code[addr]
	if !ok {
		return zero, fmt.Errorf("%w: %s", model.ErrUnknownImplementation, addr.Hex())
	}
	return impl, nil
}

// Export returns the id → implementation bindings keyed by hex.
func (r *Registry[T]) Export() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.current))
	for id, addr := range r.current {
		out[id.Hex()] = addr.Hex()
	}
	return out
}

// Import replaces the bindings with persisted ones.
func (r *Registry[T]) Import(bindings map[string]string) error {
	ids := make([]string, 0, len(bindings))
	for id := range bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, rawID := range ids {
		addr, err := chain.ParseAddress(bindings[rawID])
		if err != nil {
			return fmt.Errorf("registry %s: %w", rawID, err)
		}
		if err := r.Bind(common.HexToHash(rawID), addr); err != nil {
			return err
		}
	}
	return nil
}
