package domain

import (
	"fmt"
	"sort"

	"github.com/atbitcoin/handlekeeper/pkg/wallet"
)

// HandleRecord is the local state of a handle. The derivation path is the
// identity of the handle and never changes. Certificate is nil until the
// registry proves ownership.
type HandleRecord struct {
	DerivationPath string           `json:"path"`
	Certificate    *CertificateData `json:"cert,omitempty"`
}

// Index returns the leaf index of the record path.
func (r HandleRecord) Index() (uint32, error) {
	return wallet.HandleIndex(r.DerivationPath)
}

// HasCertificate ...
func (r HandleRecord) HasCertificate() bool {
	return r.Certificate != nil
}

// Keystore is the public state of the application: the master public key and
// the handles derived from it. NextIndex is the lowest leaf index that was
// never assigned, it survives handle removals so that indexes are never
// reused.
type Keystore struct {
	MasterPublicKey string                  `json:"xpub"`
	Handles         map[string]HandleRecord `json:"handles"`
	NextIndex       uint32                  `json:"next_index"`
}

// NewKeystore returns a keystore for the given master public key and
// initial handles, validating every record.
func NewKeystore(xpub string, handles map[string]HandleRecord) (*Keystore, error) {
	if xpub == "" {
		return nil, fmt.Errorf("%w: missing master public key", ErrInvalidKeystore)
	}
	if err := wallet.ValidateMasterPublicKey(xpub); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKeystore, err)
	}

	k := &Keystore{
		MasterPublicKey: xpub,
		Handles:         make(map[string]HandleRecord, len(handles)),
	}
	for name, record := range handles {
		k.Handles[name] = copyRecord(record)
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	k.NextIndex = k.nextFreeIndex()
	return k, nil
}

// IsZero ...
func (k *Keystore) IsZero() bool {
	return k == nil || k.MasterPublicKey == ""
}

// Validate checks names, paths and certificates of all records, and that no
// two records share a path.
func (k *Keystore) Validate() error {
	seen := make(map[uint32]string, len(k.Handles))
	for name, record := range k.Handles {
		if err := ValidateHandleName(name); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidKeystore, err)
		}
		index, err := record.Index()
		if err != nil {
			return fmt.Errorf("%w: handle %s: %s", ErrInvalidKeystore, name, err)
		}
		if other, ok := seen[index]; ok {
			return fmt.Errorf(
				"%w: handles %s and %s share path %s",
				ErrInvalidKeystore, other, name, record.DerivationPath,
			)
		}
		seen[index] = name
		if record.Certificate != nil {
			if err := record.Certificate.Validate(); err != nil {
				return fmt.Errorf("%w: handle %s: %s", ErrInvalidKeystore, name, err)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the keystore.
func (k *Keystore) Clone() *Keystore {
	if k == nil {
		return nil
	}
	clone := &Keystore{
		MasterPublicKey: k.MasterPublicKey,
		Handles:         make(map[string]HandleRecord, len(k.Handles)),
		NextIndex:       k.NextIndex,
	}
	for name, record := range k.Handles {
		clone.Handles[name] = copyRecord(record)
	}
	return clone
}

// Handle returns a copy of the record of the given handle.
func (k *Keystore) Handle(name string) (HandleRecord, bool) {
	record, ok := k.Handles[name]
	if !ok {
		return HandleRecord{}, false
	}
	return copyRecord(record), true
}

// HandleNames returns the sorted list of handle names.
func (k *Keystore) HandleNames() []string {
	names := make([]string, 0, len(k.Handles))
	for name := range k.Handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateHandle adds a handle at the next unused leaf index. The name must be
// already normalized. Adding an existing handle is a no-op and returns
// false along with the existing record.
func (k *Keystore) CreateHandle(name string) (HandleRecord, bool, error) {
	if err := ValidateHandleName(name); err != nil {
		return HandleRecord{}, false, err
	}
	if record, ok := k.Handle(name); ok {
		return record, false, nil
	}

	index := k.nextFreeIndex()
	if k.NextIndex > index {
		index = k.NextIndex
	}
	record := HandleRecord{
		DerivationPath: wallet.HandleDerivationPath(index).String(),
	}
	if k.Handles == nil {
		k.Handles = make(map[string]HandleRecord)
	}
	k.Handles[name] = record
	k.NextIndex = index + 1
	return record, true, nil
}

// RemoveHandle deletes the record of the given handle and returns whether it
// existed. Its index is not released.
func (k *Keystore) RemoveHandle(name string) bool {
	if _, ok := k.Handles[name]; !ok {
		return false
	}
	delete(k.Handles, name)
	return true
}

// SetCertificate sets, or clears when data is nil, the certificate of the
// given handle. It returns false if the handle does not exist.
func (k *Keystore) SetCertificate(name string, data *CertificateData) (bool, error) {
	record, ok := k.Handles[name]
	if !ok {
		return false, nil
	}
	if data != nil {
		if err := data.Validate(); err != nil {
			return false, err
		}
		d := *data
		record.Certificate = &d
	} else {
		record.Certificate = nil
	}
	k.Handles[name] = record
	return true, nil
}

// HandleScript returns the hex output script derived for the given handle.
func (k *Keystore) HandleScript(name string) (string, error) {
	record, ok := k.Handles[name]
	if !ok {
		return "", ErrHandleNotFound
	}
	return wallet.HandleScript(k.MasterPublicKey, record.DerivationPath)
}

// HandlePublicKey returns the x-only public key derived for the given handle.
func (k *Keystore) HandlePublicKey(name string) ([]byte, error) {
	record, ok := k.Handles[name]
	if !ok {
		return nil, ErrHandleNotFound
	}
	path, err := wallet.ParseDerivationPath(record.DerivationPath)
	if err != nil {
		return nil, err
	}
	return wallet.DerivePublicKey(k.MasterPublicKey, path)
}

// Certificate returns the wire form certificate of the given handle, or
// ErrNotYetAvailable if the registry did not issue it yet.
func (k *Keystore) Certificate(name string) (*Certificate, error) {
	record, ok := k.Handles[name]
	if !ok {
		return nil, ErrHandleNotFound
	}
	if record.Certificate == nil {
		return nil, fmt.Errorf("certificate of %s: %w", name, ErrNotYetAvailable)
	}
	script, err := k.HandleScript(name)
	if err != nil {
		return nil, err
	}
	cert := NewCertificate(*record.Certificate, name, script)
	return &cert, nil
}

// CheckTransition verifies that next is a legal successor of k: the master
// public key never changes and the index high-water mark never decreases.
func (k *Keystore) CheckTransition(next *Keystore) error {
	if next.IsZero() {
		return ErrKeystoreNotInitialized
	}
	if next.MasterPublicKey != k.MasterPublicKey {
		return ErrMasterKeyImmutable
	}
	if next.NextIndex < k.NextIndex {
		return ErrPathIndexReused
	}
	for name, record := range next.Handles {
		index, err := record.Index()
		if err != nil {
			return fmt.Errorf("%w: handle %s: %s", ErrInvalidKeystore, name, err)
		}
		prev, existed := k.Handles[name]
		if existed && prev.DerivationPath == record.DerivationPath {
			continue
		}
		if index < k.NextIndex {
			return ErrPathIndexReused
		}
	}
	return next.Validate()
}

// ToBackup returns the exportable part of the keystore.
func (k *Keystore) ToBackup() Backup {
	handles := make(map[string]HandleRecord, len(k.Handles))
	for name, record := range k.Handles {
		handles[name] = copyRecord(record)
	}
	return Backup{MasterPublicKey: k.MasterPublicKey, Handles: handles}
}

// nextFreeIndex returns the index following the highest one in use.
func (k *Keystore) nextFreeIndex() uint32 {
	var next uint32
	for _, record := range k.Handles {
		index, err := record.Index()
		if err != nil {
			continue
		}
		if index+1 > next {
			next = index + 1
		}
	}
	return next
}

func copyRecord(record HandleRecord) HandleRecord {
	if record.Certificate != nil {
		cert := *record.Certificate
		record.Certificate = &cert
	}
	return record
}
