package cache

import (
	"bytes"
	"encoding/xml"
	"io"
)

type xmlCache struct {
	XMLName xml.Name `xml:"KVCache"`
	Sets    []xmlSet `xml:"Set"`
}

type xmlSet struct {
	ID      int        `xml:"Id,attr"`
	Entries []xmlEntry `xml:"CacheEntry"`
}

type xmlEntry struct {
	Referenced bool   `xml:"isReferenced,attr"`
	Valid      bool   `xml:"isValid,attr"`
	Key        string `xml:"Key"`
	Value      string `xml:"Value"`
}

// WriteXML writes a snapshot of every set to w. Each set lists
// maxElemsPerSet slots in eviction order; unused slots are marked invalid.
// Sets are locked one at a time and no entry state changes.
func (c *Cache) WriteXML(w io.Writer) error {
	doc := xmlCache{Sets: make([]xmlSet, len(c.sets))}
	for id, s := range c.sets {
		xs := xmlSet{ID: id, Entries: make([]xmlEntry, c.maxElemsPerSet)}
		s.mu.Lock()
		for i, e := range s.entries {
			xs.Entries[i] = xmlEntry{Referenced: e.referenced, Valid: true, Key: e.key, Value: e.value}
		}
		s.mu.Unlock()
		doc.Sets[id] = xs
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Dump returns WriteXML's output as a string.
func (c *Cache) Dump() string {
	var buf bytes.Buffer
	_ = c.WriteXML(&buf)
	return buf.String()
}
