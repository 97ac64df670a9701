package native

import (
	"encoding/binary"
	"encoding/json"

	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/core/store/kv"
	"go.dedis.ch/pre/core/store/prefixed"
	"golang.org/x/xerrors"
)

var (
	keyState   = []byte("state")
	keyStaking = []byte("staking")

	// proxy address -> proxyEntry
	nsProxies = []byte("proxies")
	// proxy address -> flag
	nsActive = []byte("active")
	// data id -> contract.DataEntry
	nsData = []byte("data")
	// delegator public key -> delegator address
	nsDelegators = []byte("delegators")
	// delegator public key -> delegatee public key -> proxy address -> delegation id
	nsDelegationIDs = []byte("delegation_ids")
	// delegation id -> delegationEntry
	nsDelegations = []byte("delegations")
	// proxy address -> delegation id -> flag
	nsProxyDelegations = []byte("proxy_delegations")
	// task id -> taskEntry
	nsTasks = []byte("tasks")
	// data id -> delegatee public key -> proxy address -> task id
	nsDelegateeTasks = []byte("delegatee_tasks")
	// proxy address -> task id -> flag
	nsQueue = []byte("queue")
	// data id -> task id -> flag
	nsDataTasks = []byte("data_tasks")

	flag = []byte{1}
)

type stateEntry struct {
	Admin             string `json:"admin"`
	Threshold         uint32 `json:"threshold"`
	NextProxyTaskID   uint64 `json:"next_proxy_task_id"`
	NextDelegationID  uint64 `json:"next_delegation_id"`
	ProxyWhitelisting bool   `json:"proxy_whitelisting"`
	Terminated        bool   `json:"terminated"`
	Withdrawn         bool   `json:"withdrawn"`
	TerminateHeight   uint64 `json:"terminate_height"`
	WithdrawalPeriod  uint64 `json:"withdrawal_period"`
	TimeoutHeight     uint64 `json:"timeout_height"`
}

type proxyEntry struct {
	State  contract.ProxyState `json:"state"`
	Pubkey []byte              `json:"proxy_pubkey,omitempty"`
	Stake  uint64              `json:"stake_amount"`
}

type delegationEntry struct {
	DelegatorPubkey  []byte `json:"delegator_pubkey"`
	DelegateePubkey  []byte `json:"delegatee_pubkey"`
	DelegationString []byte `json:"delegation_string"`
}

type taskEntry struct {
	DelegateePubkey  []byte `json:"delegatee_pubkey"`
	DataID           string `json:"data_id"`
	Fragment         []byte `json:"fragment,omitempty"`
	ProxyAddr        string `json:"proxy_addr"`
	DelegationString []byte `json:"delegation_string"`
	Resolved         bool   `json:"resolved"`
	Abandoned        bool   `json:"abandoned"`
	TimeoutHeight    uint64 `json:"timeout_height"`
	RefundAddr       string `json:"refund_addr"`
}

// table is a namespace of the contract storage where the values are JSON
// documents.
type table struct {
	bucket kv.Bucket
}

func newTable(parent kv.Bucket, namespaces ...[]byte) table {
	return table{bucket: prefixed.NewBucket(parent, namespaces...)}
}

func (t table) load(key []byte, v interface{}) (bool, error) {
	data := t.bucket.Get(key)
	if data == nil {
		return false, nil
	}

	err := json.Unmarshal(data, v)
	if err != nil {
		return false, xerrors.Errorf("corrupted entry: %v", err)
	}

	return true, nil
}

func (t table) save(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return xerrors.Errorf("couldn't encode entry: %v", err)
	}

	return t.bucket.Set(key, data)
}

func (t table) set(key, value []byte) error {
	return t.bucket.Set(key, value)
}

func (t table) get(key []byte) []byte {
	return t.bucket.Get(key)
}

func (t table) has(key []byte) bool {
	return t.bucket.Get(key) != nil
}

func (t table) remove(key []byte) error {
	return t.bucket.Delete(key)
}

// keys returns a copy of the keys in order, so that the table can be modified
// afterwards.
func (t table) keys() ([][]byte, error) {
	var keys [][]byte

	err := t.bucket.ForEach(func(k, v []byte) error {
		keys = append(keys, append([]byte{}, k...))
		return nil
	})

	return keys, err
}

// values returns a copy of the values in the order of the keys.
func (t table) values() ([][]byte, error) {
	var values [][]byte

	err := t.bucket.ForEach(func(k, v []byte) error {
		values = append(values, append([]byte{}, v...))
		return nil
	})

	return values, err
}

// storage is the typed view of the contract storage.
type storage struct {
	root kv.Bucket
}

func (s storage) state() (*stateEntry, error) {
	st := &stateEntry{}

	found, err := table{bucket: s.root}.load(keyState, st)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, xerrors.New("contract not instantiated")
	}

	return st, nil
}

func (s storage) setState(st *stateEntry) error {
	return table{bucket: s.root}.save(keyState, st)
}

func (s storage) staking() (contract.StakingConfig, error) {
	var cfg contract.StakingConfig

	found, err := table{bucket: s.root}.load(keyStaking, &cfg)
	if err != nil {
		return cfg, err
	}
	if !found {
		return cfg, xerrors.New("missing staking config")
	}

	return cfg, nil
}

func (s storage) setStaking(cfg contract.StakingConfig) error {
	return table{bucket: s.root}.save(keyStaking, cfg)
}

// Proxies

func (s storage) proxy(addr string) (*proxyEntry, error) {
	entry := &proxyEntry{}

	found, err := newTable(s.root, nsProxies).load([]byte(addr), entry)
	if err != nil || !found {
		return nil, err
	}

	return entry, nil
}

func (s storage) setProxy(addr string, entry *proxyEntry) error {
	return newTable(s.root, nsProxies).save([]byte(addr), entry)
}

func (s storage) removeProxy(addr string) error {
	return newTable(s.root, nsProxies).remove([]byte(addr))
}

func (s storage) setActive(addr string, active bool) error {
	t := newTable(s.root, nsActive)

	if active {
		return t.set([]byte(addr), flag)
	}

	return t.remove([]byte(addr))
}

func (s storage) isActive(addr string) bool {
	return newTable(s.root, nsActive).has([]byte(addr))
}

func (s storage) activeProxies() ([]string, error) {
	keys, err := newTable(s.root, nsActive).keys()
	if err != nil {
		return nil, err
	}

	return toStrings(keys), nil
}

// Data

func (s storage) data(dataID string) (*contract.DataEntry, error) {
	entry := &contract.DataEntry{}

	found, err := newTable(s.root, nsData).load([]byte(dataID), entry)
	if err != nil || !found {
		return nil, err
	}

	return entry, nil
}

func (s storage) setData(dataID string, entry *contract.DataEntry) error {
	return newTable(s.root, nsData).save([]byte(dataID), entry)
}

func (s storage) removeData(dataID string) error {
	return newTable(s.root, nsData).remove([]byte(dataID))
}

func (s storage) delegatorAddr(pubkey []byte) string {
	return string(newTable(s.root, nsDelegators).get(pubkey))
}

func (s storage) setDelegatorAddr(pubkey []byte, addr string) error {
	return newTable(s.root, nsDelegators).set(pubkey, []byte(addr))
}

// Delegations

func (s storage) delegationIDs(delegator, delegatee []byte) table {
	return newTable(s.root, nsDelegationIDs, delegator, delegatee)
}

func (s storage) delegationID(delegator, delegatee []byte, proxyAddr string) (uint64, bool) {
	data := s.delegationIDs(delegator, delegatee).get([]byte(proxyAddr))

	return decodeID(data), data != nil
}

func (s storage) delegationProxies(delegator, delegatee []byte) ([]string, error) {
	keys, err := s.delegationIDs(delegator, delegatee).keys()
	if err != nil {
		return nil, xerrors.Errorf("failed to read delegation: %v", err)
	}

	return toStrings(keys), nil
}

func (s storage) delegation(id uint64) (*delegationEntry, error) {
	entry := &delegationEntry{}

	found, err := newTable(s.root, nsDelegations).load(encodeID(id), entry)
	if err != nil || !found {
		return nil, err
	}

	return entry, nil
}

func (s storage) addDelegation(id uint64, proxyAddr string, entry *delegationEntry) error {
	err := newTable(s.root, nsDelegations).save(encodeID(id), entry)
	if err != nil {
		return err
	}

	err = s.delegationIDs(entry.DelegatorPubkey, entry.DelegateePubkey).set([]byte(proxyAddr), encodeID(id))
	if err != nil {
		return err
	}

	return newTable(s.root, nsProxyDelegations, []byte(proxyAddr)).set(encodeID(id), flag)
}

// removeProxyFromDelegations removes the proxy from every delegation it is
// part of.
func (s storage) removeProxyFromDelegations(proxyAddr string) error {
	perProxy := newTable(s.root, nsProxyDelegations, []byte(proxyAddr))

	ids, err := perProxy.keys()
	if err != nil {
		return xerrors.Errorf("failed to read proxy delegations: %v", err)
	}

	for _, key := range ids {
		id := decodeID(key)

		entry, err := s.delegation(id)
		if err != nil {
			return err
		}

		if entry != nil {
			err = s.delegationIDs(entry.DelegatorPubkey, entry.DelegateePubkey).remove([]byte(proxyAddr))
			if err != nil {
				return err
			}
		}

		err = newTable(s.root, nsDelegations).remove(key)
		if err != nil {
			return err
		}

		err = perProxy.remove(key)
		if err != nil {
			return err
		}
	}

	return nil
}

// Tasks

func (s storage) task(id uint64) (*taskEntry, error) {
	entry := &taskEntry{}

	found, err := newTable(s.root, nsTasks).load(encodeID(id), entry)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, xerrors.Errorf("missing task %d", id)
	}

	return entry, nil
}

func (s storage) setTask(id uint64, entry *taskEntry) error {
	return newTable(s.root, nsTasks).save(encodeID(id), entry)
}

// addTask stores a new task and indexes it for the delegatee, the proxy and
// the data.
func (s storage) addTask(id uint64, entry *taskEntry) error {
	err := s.setTask(id, entry)
	if err != nil {
		return err
	}

	err = s.delegateeTasks(entry.DataID, entry.DelegateePubkey).set([]byte(entry.ProxyAddr), encodeID(id))
	if err != nil {
		return err
	}

	err = s.queue(entry.ProxyAddr).set(encodeID(id), flag)
	if err != nil {
		return err
	}

	return newTable(s.root, nsDataTasks, []byte(entry.DataID)).set(encodeID(id), flag)
}

// deleteTask removes the task and every index of it.
func (s storage) deleteTask(id uint64, entry *taskEntry) error {
	err := s.queue(entry.ProxyAddr).remove(encodeID(id))
	if err != nil {
		return err
	}

	err = s.delegateeTasks(entry.DataID, entry.DelegateePubkey).remove([]byte(entry.ProxyAddr))
	if err != nil {
		return err
	}

	err = newTable(s.root, nsDataTasks, []byte(entry.DataID)).remove(encodeID(id))
	if err != nil {
		return err
	}

	return newTable(s.root, nsTasks).remove(encodeID(id))
}

func (s storage) delegateeTasks(dataID string, delegatee []byte) table {
	return newTable(s.root, nsDelegateeTasks, []byte(dataID), delegatee)
}

func (s storage) delegateeTask(dataID string, delegatee []byte, proxyAddr string) (uint64, bool) {
	data := s.delegateeTasks(dataID, delegatee).get([]byte(proxyAddr))

	return decodeID(data), data != nil
}

// requestTasks returns the tasks of the re-encryption request of the data for
// the delegatee, in the order of the proxy addresses.
func (s storage) requestTasks(dataID string, delegatee []byte) ([]uint64, error) {
	values, err := s.delegateeTasks(dataID, delegatee).values()
	if err != nil {
		return nil, xerrors.Errorf("failed to read request: %v", err)
	}

	return toIDs(values), nil
}

func (s storage) queue(proxyAddr string) table {
	return newTable(s.root, nsQueue, []byte(proxyAddr))
}

func (s storage) queuedTasks(proxyAddr string) ([]uint64, error) {
	keys, err := s.queue(proxyAddr).keys()
	if err != nil {
		return nil, xerrors.Errorf("failed to read queue: %v", err)
	}

	return toIDs(keys), nil
}

func (s storage) dataTasks(dataID string) ([]uint64, error) {
	keys, err := newTable(s.root, nsDataTasks, []byte(dataID)).keys()
	if err != nil {
		return nil, xerrors.Errorf("failed to read data tasks: %v", err)
	}

	return toIDs(keys), nil
}

func encodeID(id uint64) []byte {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, id)

	return buffer
}

func decodeID(data []byte) uint64 {
	if len(data) != 8 {
		return 0
	}

	return binary.BigEndian.Uint64(data)
}

func toIDs(raw [][]byte) []uint64 {
	ids := make([]uint64, len(raw))
	for i, data := range raw {
		ids[i] = decodeID(data)
	}

	return ids
}

func toStrings(raw [][]byte) []string {
	res := make([]string, len(raw))
	for i, data := range raw {
		res[i] = string(data)
	}

	return res
}
