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

package lifecycle

import (
	"fmt"
	"io"
	"time"

	"github.com/valyala/bytebufferpool"
)

// DebugScenes writes one line per catalog scene with its lifecycle state.
func (e *Engine) DebugScenes(w io.Writer) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, "loading:%t active:%d in_flight:%d\n", e.Loading(), e.tracker.Len(), e.loading.Load())
	if e.catalog == nil {
		_, err := w.Write(buf.B)
		return err
	}
	now := time.Now()
	for _, d := range e.catalog.All() {
		st := d.Snapshot()
		instance := "-"
		if st.Instance != nil {
			instance = st.Instance.ID()
		}
		held := "-"
		if st.Processing {
			held = now.Sub(st.Since).Truncate(time.Millisecond).String()
		}
		fmt.Fprintf(buf, "name:%s category:%s processing:%t loaded:%t active:%t held:%s instance:%s\n",
			d.Name, d.Category, st.Processing, st.Loaded, e.tracker.Contains(d), held, instance)
	}
	_, err := buf.WriteTo(w)
	return err
}
