package wallet

import (
	"github.com/google/uuid"

	"github.com/btpc-network/btpc/chainparams"
)

// BackupRecord is the canonical payload a backup file's ciphertext holds
// (spec §4.6.5 "backup(wallet_id) writes a canonical backup record
// including wallet_id").
type BackupRecord struct {
	WalletID string      `json:"wallet_id"`
	Network  string      `json:"network"`
	Keys     []*KeyEntry `json:"keys"`
}

// Backup writes the wallet's current key material to path as an
// encrypted BackupRecord, under its own password (which may differ from
// the live wallet's).
func (m *Manager) Backup(path string, password []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.unlocked {
		return ErrWalletLocked
	}
	rec := BackupRecord{
		WalletID: m.data.WalletID,
		Network:  m.data.Network,
		Keys:     m.data.Keys,
	}
	return encryptToFile(path, password, rec)
}

// Restore decrypts a backup file and returns a Manager over its contents,
// targeting targetPath for subsequent Save calls. A legacy backup whose
// wallet_id is empty receives a freshly generated one rather than
// restoring with no identity (spec §4.6.5).
func Restore(backupPath, targetPath string, network chainparams.Network, password []byte) (*Manager, string, error) {
	var rec BackupRecord
	if err := decryptFromFile(backupPath, password, &rec); err != nil {
		return nil, "", err
	}

	assignedFreshID := false
	if rec.WalletID == "" {
		rec.WalletID = uuid.NewString()
		assignedFreshID = true
	}

	m := &Manager{
		path:     targetPath,
		network:  network,
		unlocked: true,
		data: WalletData{
			WalletID: rec.WalletID,
			Network:  rec.Network,
			Keys:     rec.Keys,
		},
		byAddress: make(map[string]*KeyEntry, len(rec.Keys)),
	}
	for _, k := range m.data.Keys {
		m.byAddress[NormalizeAddress(k.Address)] = k
	}

	if err := m.Save(password); err != nil {
		return nil, "", err
	}

	if assignedFreshID {
		return m, rec.WalletID, nil
	}
	return m, "", nil
}
