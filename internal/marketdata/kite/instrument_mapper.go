package kite

import (
	"sort"
	"sync"
)

// instrumentMapper manages bidirectional mapping between trading symbols and tokens
type instrumentMapper struct {
	symbolToToken map[string]int
	tokenToSymbol map[int]string
	mu            sync.RWMutex
}

// newInstrumentMapper creates an empty instrument mapper
func newInstrumentMapper() *instrumentMapper {
	return &instrumentMapper{
		symbolToToken: make(map[string]int),
		tokenToSymbol: make(map[int]string),
	}
}

// replaceAll swaps in a complete symbol-token set in one step, so readers
// see either the old set or the new one
func (im *instrumentMapper) replaceAll(symbolToToken map[string]int) {
	tokenToSymbol := make(map[int]string, len(symbolToToken))
	for s, t := range symbolToToken {
		tokenToSymbol[t] = s
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	im.symbolToToken = symbolToToken
	im.tokenToSymbol = tokenToSymbol
}

// getToken retrieves the token for a symbol
func (im *instrumentMapper) getToken(symbol string) (int, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	token, exists := im.symbolToToken[symbol]
	return token, exists
}

// symbols returns every mapped symbol, sorted
func (im *instrumentMapper) symbols() []string {
	im.mu.RLock()
	defer im.mu.RUnlock()

	out := make([]string, 0, len(im.symbolToToken))
	for s := range im.symbolToToken {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// size returns the number of mapped symbols
func (im *instrumentMapper) size() int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return len(im.symbolToToken)
}
