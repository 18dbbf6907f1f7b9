package strategy

// KeyValues is the projected column set of one journal data row as parallel
// key and value slices. Hooks edit it in place before the row is written.
type KeyValues struct {
	Keys   []string
	Values []any
}

// Len returns the number of pairs
func (kv *KeyValues) Len() int {
	return len(kv.Keys)
}

// Index returns the position of key, or -1
func (kv *KeyValues) Index(key string) int {
	for i, k := range kv.Keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Get returns the value stored under key
func (kv *KeyValues) Get(key string) (any, bool) {
	i := kv.Index(key)
	if i < 0 {
		return nil, false
	}
	return kv.Values[i], true
}

// Append adds a pair at the end
func (kv *KeyValues) Append(key string, value any) {
	kv.Keys = append(kv.Keys, key)
	kv.Values = append(kv.Values, value)
}

// Delete removes key and its value, reporting whether it was present
func (kv *KeyValues) Delete(key string) bool {
	i := kv.Index(key)
	if i < 0 {
		return false
	}
	kv.Keys = append(kv.Keys[:i], kv.Keys[i+1:]...)
	kv.Values = append(kv.Values[:i], kv.Values[i+1:]...)
	return true
}

// Rename changes the key at from's position to to, keeping its value
func (kv *KeyValues) Rename(from, to string) bool {
	i := kv.Index(from)
	if i < 0 {
		return false
	}
	kv.Keys[i] = to
	return true
}

// Matching returns a copy of the keys for which match is true, in order
func (kv *KeyValues) Matching(match func(key string) bool) []string {
	var keys []string
	for _, k := range kv.Keys {
		if match(k) {
			keys = append(keys, k)
		}
	}
	return keys
}
