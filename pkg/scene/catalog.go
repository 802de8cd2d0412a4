/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package scene

import (
	"fmt"
	"time"
)

// Catalog is the static set of scenes known to the process. It is built once
// at start-up and never changes shape afterwards.
type Catalog struct {
	byName map[string]*Descriptor
	order  []*Descriptor
}

func NewCatalog(descs ...*Descriptor) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Descriptor, len(descs))}
	for _, d := range descs {
		if d == nil || d.Name == "" {
			return nil, fmt.Errorf("catalog: scene without a name")
		}
		if _, dup := c.byName[d.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate scene %q", d.Name)
		}
		c.byName[d.Name] = d
		c.order = append(c.order, d)
	}
	return c, nil
}

func (c *Catalog) Lookup(name string) (*Descriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

func (c *Catalog) Len() int { return len(c.order) }

// All returns the scenes in configuration order.
func (c *Catalog) All() []*Descriptor {
	out := make([]*Descriptor, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Catalog) ByCategory(cats ...Category) []*Descriptor {
	var out []*Descriptor
	for _, d := range c.order {
		if d.Category.In(cats...) {
			out = append(out, d)
		}
	}
	return out
}

// Reset clears every descriptor's runtime state.
func (c *Catalog) Reset() {
	for _, d := range c.order {
		d.Reset()
	}
}

// Stuck lists descriptors whose guard has been held for longer than limit.
func (c *Catalog) Stuck(limit time.Duration) []*Descriptor {
	var out []*Descriptor
	now := time.Now()
	for _, d := range c.order {
		s := d.Snapshot()
		if s.Processing && !s.Since.IsZero() && now.Sub(s.Since) > limit {
			out = append(out, d)
		}
	}
	return out
}
