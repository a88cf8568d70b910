package listing

import "sort"

// Collection is a mutable working set of listings moving through a matching pass.
type Collection struct {
	Items []*Listing
}

func NewCollection(items []*Listing) *Collection {
	return &Collection{Items: items}
}

func (c *Collection) Len() int {
	return len(c.Items)
}

func (c *Collection) IDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, l := range c.Items {
		ids = append(ids, l.ID)
	}
	return ids
}

func (c *Collection) FindByID(id string) *Listing {
	for _, l := range c.Items {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// ExcludeIDs removes the listings whose id appears in ids and returns the
// removed ids.
func (c *Collection) ExcludeIDs(ids []string) []string {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	removed := make([]string, 0)
	kept := make([]*Listing, 0, len(c.Items))
	for _, l := range c.Items {
		if _, ok := drop[l.ID]; ok {
			removed = append(removed, l.ID)
			continue
		}
		kept = append(kept, l)
	}

	c.Items = kept
	return removed
}

// SortByRecency orders the collection by ingestion time, most recent first.
func (c *Collection) SortByRecency() {
	sort.SliceStable(c.Items, func(i, j int) bool {
		return c.Items[i].IngestedAt.After(c.Items[j].IngestedAt)
	})
}
