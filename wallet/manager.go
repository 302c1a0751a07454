// Package wallet implements the key lifecycle, encrypted on-disk wallet
// file, balance accounting, and spend construction of spec §3/§4.6. It
// never touches the network: broadcast is the caller's responsibility
// through the Broadcaster interface, and coin selection candidates come
// from whatever UTXO index the caller maintains (typically a cache layered
// over storage.DB).
package wallet

import (
	"sync"

	"github.com/google/uuid"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/crypto"
)

// Manager owns one wallet's key material in memory. All KeyEntry material
// is zeroized on Lock (spec §3 "the wallet manager owns all KeyEntry
// material in memory; seeds are zeroized on drop"). Reads (balance,
// address lookup) take the read lock; key mutation takes the write lock
// (spec §5 concurrency model).
type Manager struct {
	mu sync.RWMutex

	path     string
	network  chainparams.Network
	unlocked bool

	data WalletData
	// byAddress indexes data.Keys by normalized address for O(1) lookup.
	byAddress map[string]*KeyEntry
}

// Create generates a fresh wallet_id, writes an empty encrypted wallet
// file to path, and returns a Manager already unlocked over it (spec
// §4.6.1 "Create").
func Create(path string, network chainparams.Network, password []byte) (*Manager, error) {
	data := WalletData{
		WalletID: uuid.NewString(),
		Network:  network.String(),
	}
	if err := encryptToFile(path, password, data); err != nil {
		return nil, err
	}
	return &Manager{
		path:      path,
		network:   network,
		unlocked:  true,
		data:      data,
		byAddress: make(map[string]*KeyEntry),
	}, nil
}

// Load decrypts the wallet file at path with password and returns an
// unlocked Manager over it (spec §4.6.1 "Load").
func Load(path string, network chainparams.Network, password []byte) (*Manager, error) {
	var data WalletData
	if err := decryptFromFile(path, password, &data); err != nil {
		return nil, err
	}
	m := &Manager{
		path:      path,
		network:   network,
		unlocked:  true,
		data:      data,
		byAddress: make(map[string]*KeyEntry),
	}
	for _, k := range m.data.Keys {
		m.byAddress[NormalizeAddress(k.Address)] = k
	}
	return m, nil
}

// Lock zeroizes every key entry's sensitive buffers and marks the manager
// locked; subsequent key-material operations fail with ErrWalletLocked
// until Unlock reloads from disk.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.data.Keys {
		k.zeroize()
	}
	m.data.Keys = nil
	m.byAddress = make(map[string]*KeyEntry)
	m.unlocked = false
}

// Unlock reloads and decrypts the wallet file from disk, replacing any
// zeroized in-memory state Lock left behind.
func (m *Manager) Unlock(password []byte) error {
	var data WalletData
	if err := decryptFromFile(m.path, password, &data); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.byAddress = make(map[string]*KeyEntry, len(data.Keys))
	for _, k := range m.data.Keys {
		m.byAddress[NormalizeAddress(k.Address)] = k
	}
	m.unlocked = true
	return nil
}

// ChangeMasterPassword re-encrypts the wallet file under newPassword.
// Callers must already hold a correctly Unlock-ed Manager; this rewrites
// the on-disk envelope only.
func (m *Manager) ChangeMasterPassword(newPassword []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.unlocked {
		return ErrWalletLocked
	}
	return encryptToFile(m.path, newPassword, m.data)
}

// Save re-encrypts the current in-memory WalletData to disk under
// password (the same atomic write Create used).
func (m *Manager) Save(password []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.unlocked {
		return ErrWalletLocked
	}
	return encryptToFile(m.path, password, m.data)
}

// NewKey generates a fresh seed, derives its keypair and address, appends
// a KeyEntry, and returns the new address (spec §4.6.1 "Create").
func (m *Manager) NewKey() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unlocked {
		return "", ErrWalletLocked
	}

	seed, err := crypto.GenerateSeed()
	if err != nil {
		return "", err
	}
	kp, err := crypto.DeriveKeypair(seed)
	if err != nil {
		return "", err
	}
	addr := AddressFromPubkey(kp.PublicKey)

	entry := &KeyEntry{
		Seed:           append([]byte(nil), seed[:]...),
		PublicKeyBytes: kp.PublicKey,
		Address:        addr,
	}
	kp.Zeroize()

	m.data.Keys = append(m.data.Keys, entry)
	m.byAddress[NormalizeAddress(addr)] = entry
	return addr, nil
}

// Addresses returns every address this wallet controls.
func (m *Manager) Addresses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data.Keys))
	for _, k := range m.data.Keys {
		out = append(out, k.Address)
	}
	return out
}

// addressSet returns a normalized-address membership set for OwnsScript.
func (m *Manager) addressSet() map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(map[string]struct{}, len(m.byAddress))
	for addr := range m.byAddress {
		set[addr] = struct{}{}
	}
	return set
}

// WalletID returns the wallet's persistent identifier.
func (m *Manager) WalletID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.WalletID
}

func (m *Manager) keyFor(address string) (*KeyEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.byAddress[NormalizeAddress(address)]
	return k, ok
}
