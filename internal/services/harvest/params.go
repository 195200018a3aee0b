package harvest

// Param is one raw request argument, in request order
type Param struct {
	Key   string
	Value string
}

// Params is the raw argument list of a request. Repeated keys keep every
// occurrence for echoing; lookups see the last one.
type Params []Param

// Get returns the last value given for key
func (p Params) Get(key string) (string, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key == key {
			return p[i].Value, true
		}
	}
	return "", false
}

// Has reports whether key was given at all, even with an empty value
func (p Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Keys returns the distinct keys in order of first appearance
func (p Params) Keys() []string {
	seen := make(map[string]bool, len(p))
	keys := make([]string, 0, len(p))
	for _, kv := range p {
		if !seen[kv.Key] {
			seen[kv.Key] = true
			keys = append(keys, kv.Key)
		}
	}
	return keys
}
